package main

import (
	"fmt"
	"strconv"
	"strings"
)

type commandKind int

const (
	cmdSelect commandKind = iota
	cmdTranslate
	cmdClick
	cmdClose
	cmdQuit
)

type command struct {
	kind commandKind
	x, y int
	text string
}

// parseCommand parses one line of agent input:
//
//	select <x> <y> <text>
//	translate
//	click <x> <y>
//	close
//	quit
func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, fmt.Errorf("empty command")
	}

	switch strings.ToLower(fields[0]) {
	case "select":
		if len(fields) < 4 {
			return command{}, fmt.Errorf("usage: select <x> <y> <text>")
		}
		x, y, err := parsePoint(fields[1], fields[2])
		if err != nil {
			return command{}, err
		}
		// Keep the text as typed after the coordinates.
		rest := strings.TrimSpace(line)
		for i := 0; i < 3; i++ {
			rest = strings.TrimSpace(rest[len(strings.Fields(rest)[0]):])
		}
		return command{kind: cmdSelect, x: x, y: y, text: rest}, nil

	case "translate":
		return command{kind: cmdTranslate}, nil

	case "click":
		if len(fields) != 3 {
			return command{}, fmt.Errorf("usage: click <x> <y>")
		}
		x, y, err := parsePoint(fields[1], fields[2])
		if err != nil {
			return command{}, err
		}
		return command{kind: cmdClick, x: x, y: y}, nil

	case "close":
		return command{kind: cmdClose}, nil

	case "quit", "exit":
		return command{kind: cmdQuit}, nil
	}

	return command{}, fmt.Errorf("unknown command %q", fields[0])
}

func parsePoint(xs, ys string) (int, int, error) {
	x, err := strconv.Atoi(xs)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid x coordinate %q", xs)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid y coordinate %q", ys)
	}
	return x, y, nil
}
