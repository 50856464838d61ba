package console

import "github.com/fatih/color"

// Available ANSI colors
var (
	Yellow = color.New(color.FgYellow).SprintFunc()
	Red    = color.New(color.FgRed).SprintFunc()
	Green  = color.New(color.FgGreen).SprintFunc()
	Cyan   = color.New(color.FgCyan).SprintFunc()
	White  = color.New(color.FgHiWhite).SprintFunc()
	Bold   = color.New(color.Bold).SprintFunc()
)

// Axis colors used for sample output
var (
	AxisX = color.New(color.FgRed, color.Bold).SprintFunc()
	AxisY = color.New(color.FgGreen, color.Bold).SprintFunc()
	AxisZ = color.New(color.FgBlue, color.Bold).SprintFunc()
)
