package cli

import (
	"encoding/json"
	"fmt"
	"os"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case HealthResult:
		fmt.Printf("Status: %s\n", v.Status)
	case StatsResult:
		o.printStats(v)
	default:
		o.printJSON(data)
	}
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

// StatsResult response type
type StatsResult struct {
	Players     int  `json:"players"`
	Sessions    int  `json:"sessions"`
	Queue       int  `json:"queue"`
	Maintenance bool `json:"maintenance"`
}

func (o *Output) printStats(s StatsResult) {
	fmt.Printf("Players: %d\n", s.Players)
	fmt.Printf("Sessions: %d\n", s.Sessions)
	fmt.Printf("Queue: %d\n", s.Queue)
	maint := "off"
	if s.Maintenance {
		maint = "on"
	}
	fmt.Printf("Maintenance: %s\n", maint)
}
