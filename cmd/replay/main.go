package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"pulse-monitor/models"
	"pulse-monitor/ppg"
)

// replay feeds a recorded signal file through the detector and prints what a
// live session would have reported. Two formats are accepted: one raw value
// per line, or a JSON array of sample frames with millisecond timestamps.
func main() {
	file := flag.String("file", "", "Recording to replay (required)")
	rate := flag.Float64("rate", 30, "Sample rate for recordings without timestamps")
	verbose := flag.Bool("v", false, "Print every accepted beat")
	flag.Parse()

	if *file == "" {
		log.Fatal("usage: replay -file <recording> [-rate hz]")
	}

	frames, err := loadRecording(*file)
	if err != nil {
		log.Fatalf("failed to load recording: %v", err)
	}
	if len(frames) == 0 {
		log.Fatalf("recording %s contains no samples", *file)
	}

	cfg := ppg.DefaultConfig()
	cfg.SampleRate = *rate

	detector := ppg.NewDetector(cfg)
	detector.OnArrhythmia(func(event ppg.ArrhythmiaEvent) {
		fmt.Printf("! %-13s bpm=%.1f rr=%.0fms\n", event.Type, event.BPM, event.RRMs)
	})

	start := time.Unix(0, 0)
	step := time.Duration(float64(time.Second) / *rate)

	beats := 0
	var lastBPM uint32
	for i, frame := range frames {
		var result ppg.Result
		if frame.Timestamp > 0 {
			result = detector.ProcessSampleAt(frame.Value, time.UnixMilli(frame.Timestamp))
		} else {
			result = detector.ProcessSampleAt(frame.Value, start.Add(time.Duration(i)*step))
		}
		if result.IsPeak {
			beats++
			if *verbose {
				fmt.Printf("  beat %3d  bpm=%-3d conf=%.2f\n", beats, result.BPM, result.Confidence)
			}
		}
		if result.BPM > 0 {
			lastBPM = result.BPM
		}
	}

	fmt.Printf("\nReplayed %d samples from %s\n", len(frames), *file)
	fmt.Printf("  beats accepted: %d\n", beats)
	fmt.Printf("  final BPM:      %d\n", lastBPM)
	for kind, count := range detector.ArrhythmiaCounts() {
		fmt.Printf("  tally %-13s %d\n", kind, count)
	}
}

func loadRecording(path string) ([]models.SampleFrame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var frames []models.SampleFrame
		if err := json.Unmarshal([]byte(trimmed), &frames); err != nil {
			return nil, fmt.Errorf("parse JSON recording: %w", err)
		}
		return frames, nil
	}

	var frames []models.SampleFrame
	scanner := bufio.NewScanner(strings.NewReader(trimmed))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		value, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		frames = append(frames, models.SampleFrame{Value: value})
	}
	return frames, scanner.Err()
}
