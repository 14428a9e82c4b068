// Command device-log prints events from a protocol log file written by
// a Device Server's FileLogger (S1, the -protocol-log flag), optionally
// filtered by connection, device, category, or time range.
//
// Usage:
//
//	device-log -file <path> [-conn <id>] [-device <id>] [-category line|state|macro_step|error|dispatch]
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	devicehublog "github.com/homehub/devicehub/pkg/log"
)

func main() {
	var (
		path     string
		connID   string
		deviceID string
		category string
		since    string
		until    string
	)

	fs := flag.NewFlagSet("device-log", flag.ExitOnError)
	fs.StringVar(&path, "file", "", "protocol log file to read (required)")
	fs.StringVar(&connID, "conn", "", "filter by connection id")
	fs.StringVar(&deviceID, "device", "", "filter by device id")
	fs.StringVar(&category, "category", "", "filter by category: line, state, macro_step, error, dispatch")
	fs.StringVar(&since, "since", "", "only events at or after this RFC3339 time")
	fs.StringVar(&until, "until", "", "only events before this RFC3339 time")
	fs.Parse(os.Args[1:])

	if path == "" {
		fmt.Fprintln(os.Stderr, "device-log: -file is required")
		fs.Usage()
		os.Exit(2)
	}

	filter, err := buildFilter(connID, deviceID, category, since, until)
	if err != nil {
		log.Fatalf("device-log: %v", err)
	}

	reader, err := devicehublog.NewFilteredReader(path, filter)
	if err != nil {
		log.Fatalf("device-log: open %s: %v", path, err)
	}
	defer reader.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("device-log: read %s: %v", path, err)
		}
		printEvent(event)
		count++
	}
	fmt.Fprintf(os.Stderr, "%d event(s)\n", count)
}

func buildFilter(connID, deviceID, category, since, until string) (devicehublog.Filter, error) {
	filter := devicehublog.Filter{ConnectionID: connID, DeviceID: deviceID}

	if category != "" {
		cat, err := parseCategory(category)
		if err != nil {
			return filter, err
		}
		filter.Category = &cat
	}
	if since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return filter, fmt.Errorf("invalid -since: %w", err)
		}
		filter.TimeStart = &t
	}
	if until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return filter, fmt.Errorf("invalid -until: %w", err)
		}
		filter.TimeEnd = &t
	}
	return filter, nil
}

func parseCategory(s string) (devicehublog.Category, error) {
	switch strings.ToLower(s) {
	case "line":
		return devicehublog.CategoryLine, nil
	case "state":
		return devicehublog.CategoryState, nil
	case "macro_step", "macrostep":
		return devicehublog.CategoryMacroStep, nil
	case "error":
		return devicehublog.CategoryError, nil
	case "dispatch":
		return devicehublog.CategoryDispatch, nil
	default:
		return 0, fmt.Errorf("unknown category %q", s)
	}
}

func printEvent(event devicehublog.Event) {
	ts := event.Timestamp.Format(time.RFC3339Nano)
	switch event.Category {
	case devicehublog.CategoryLine:
		if event.Line == nil {
			break
		}
		dir := event.Direction.String()
		data := string(event.Line.Data)
		if event.Line.Timeout {
			fmt.Printf("%s %s conn=%s device=%s TIMEOUT\n", ts, dir, event.ConnectionID, event.DeviceID)
			return
		}
		tag := ""
		if event.Line.Unsolicited {
			tag = " unsolicited"
		}
		fmt.Printf("%s %s conn=%s device=%s%s %q\n", ts, dir, event.ConnectionID, event.DeviceID, tag, data)
	case devicehublog.CategoryState:
		if event.State == nil {
			break
		}
		fmt.Printf("%s STATE conn=%s device=%s %s: %s -> %s (%s)\n", ts, event.ConnectionID, event.DeviceID,
			event.State.Entity, event.State.OldState, event.State.NewState, event.State.Reason)
	case devicehublog.CategoryMacroStep:
		if event.MacroStep == nil {
			break
		}
		ms := event.MacroStep
		circuit := ""
		if ms.ShortCircuited {
			circuit = " SHORT-CIRCUIT"
		}
		fmt.Printf("%s MACRO %s[%d] %s %s -> %s%s\n", ts, ms.MacroID, ms.Index, ms.Device, ms.Command, ms.Result, circuit)
	case devicehublog.CategoryError:
		if event.Error == nil {
			break
		}
		fmt.Printf("%s ERROR conn=%s device=%s %s: %s\n", ts, event.ConnectionID, event.DeviceID, event.Error.Context, event.Error.Message)
	case devicehublog.CategoryDispatch:
		switch {
		case event.State != nil:
			fmt.Printf("%s DISPATCH %s: %s -> %s (%s)\n", ts, event.State.Entity, event.State.OldState, event.State.NewState, event.State.Reason)
		case event.Error != nil:
			fmt.Printf("%s DISPATCH %s: %s\n", ts, event.Error.Context, event.Error.Message)
		}
	default:
		fmt.Printf("%s UNKNOWN category=%d\n", ts, event.Category)
	}
}
