// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package encore talks to the Encore transcoding service and maps its jobs
// onto stored transcode state.
package encore

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/ad-normalizer/internal/transcode"
)

// Encore job states.
const (
	JobNew        = "NEW"
	JobQueued     = "QUEUED"
	JobInProgress = "IN_PROGRESS"
	JobSuccessful = "SUCCESSFUL"
	JobFailed     = "FAILED"
	JobCancelled  = "CANCELLED"
)

const (
	defaultWidth  = 1920
	defaultHeight = 1080
)

// ErrNoOutputs is returned when a finished job reports no outputs.
var ErrNoOutputs = errors.New("encore: job has no outputs")

// Job is the subset of an Encore job this service reads and writes.
type Job struct {
	ID                  string   `json:"id,omitempty"`
	ExternalID          string   `json:"externalId,omitempty"`
	Profile             string   `json:"profile"`
	OutputFolder        string   `json:"outputFolder"`
	BaseName            string   `json:"baseName"`
	Status              string   `json:"status,omitempty"`
	Inputs              []Input  `json:"inputs,omitempty"`
	Outputs             []Output `json:"output,omitempty"`
	ProgressCallbackURI string   `json:"progressCallbackUri,omitempty"`
	Message             string   `json:"message,omitempty"`
}

type Input struct {
	URI       string  `json:"uri"`
	SeekTo    float64 `json:"seekTo,omitempty"`
	CopyTS    bool    `json:"copyTs"`
	MediaType string  `json:"type"`
}

type Output struct {
	MediaType      string        `json:"type"`
	Format         string        `json:"format"`
	File           string        `json:"file"`
	FileSize       int64         `json:"fileSize"`
	OverallBitrate int64         `json:"overallBitrate"`
	VideoStreams   []VideoStream `json:"videoStreams"`
	AudioStreams   []AudioStream `json:"audioStreams"`
}

type VideoStream struct {
	Codec     string `json:"codec"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	FrameRate string `json:"frameRate"`
}

type AudioStream struct {
	Codec        string `json:"codec"`
	Channels     int    `json:"channels"`
	SamplingRate int    `json:"samplingRate"`
	Profile      string `json:"profile"`
}

// Progress is the body Encore posts to the progress callback.
type Progress struct {
	JobID      string `json:"jobId"`
	ExternalID string `json:"externalId"`
	Progress   int    `json:"progress"`
	Status     string `json:"status"`
}

// TranscodeStatus maps the Encore job state. A successful job is only
// COMPLETED when packaging happens just in time; otherwise it still has to
// go through the packager.
func (j Job) TranscodeStatus(jitPackaging bool) transcode.Status {
	switch j.Status {
	case JobSuccessful:
		if jitPackaging {
			return transcode.StatusCompleted
		}
		return transcode.StatusPackaging
	case JobFailed, JobCancelled:
		return transcode.StatusFailed
	case JobInProgress, JobQueued, JobNew:
		return transcode.StatusInProgress
	default:
		return transcode.StatusUnknown
	}
}

// FrameRates returns the distinct video frame rates of all outputs in
// ascending order.
func (j Job) FrameRates() []float64 {
	rates := make([]float64, 0, len(j.Outputs))
	for _, o := range j.Outputs {
		for _, vs := range o.VideoStreams {
			if vs.FrameRate != "" {
				rates = append(rates, ParseFrameRate(vs.FrameRate))
			}
		}
	}
	slices.Sort(rates)
	return slices.Compact(rates)
}

// ParseFrameRate parses "num/den" or a plain number, rounded to two
// decimals. Unparseable input yields 0.
func ParseFrameRate(s string) float64 {
	num, den, hasDen := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0
	}
	d := 1.0
	if hasDen {
		if v, err := strconv.ParseFloat(strings.TrimSpace(den), 64); err == nil && v != 0 {
			d = v
		}
	}
	return math.Round(n/d*100) / 100
}

// AspectRatio reduces width:height by their greatest common divisor.
func AspectRatio(width, height int) string {
	if width <= 0 || height <= 0 {
		return "0:0"
	}
	g := gcd(width, height)
	return strconv.Itoa(width/g) + ":" + strconv.Itoa(height/g)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// PackageURL is the HLS master playlist for a packaged output folder.
func PackageURL(assetServer *url.URL, outputFolder, baseName string) string {
	folder := outputFolder
	if u, err := url.Parse(outputFolder); err == nil && u.Scheme != "" {
		// Output folders are object storage URLs; only the path is served.
		folder = u.Host + u.Path
	}
	return assetServer.JoinPath(folder, baseName+".m3u8").String()
}

// InfoFromJob builds the stored state for a job. The URL is only filled in
// when the job is served by just-in-time packaging.
func InfoFromJob(job Job, jitPackaging bool, assetServer *url.URL, now time.Time) (transcode.Info, error) {
	if len(job.Outputs) == 0 {
		return transcode.Info{}, fmt.Errorf("job %s: %w", job.ID, ErrNoOutputs)
	}
	width, height := defaultWidth, defaultHeight
	if vs := firstVideoStream(job.Outputs); vs != nil {
		if vs.Width != 0 {
			width = vs.Width
		}
		if vs.Height != 0 {
			height = vs.Height
		}
	}

	info := transcode.Info{
		AspectRatio: AspectRatio(width, height),
		FrameRates:  job.FrameRates(),
		Status:      job.TranscodeStatus(jitPackaging),
		Error:       job.Message,
	}
	if len(job.Inputs) > 0 {
		info.Source = job.Inputs[0].URI
	}
	if jitPackaging {
		info.URL = PackageURL(assetServer, job.OutputFolder, job.BaseName)
	}
	info.Touch(now)
	return info, nil
}

func firstVideoStream(outputs []Output) *VideoStream {
	for i := range outputs {
		if len(outputs[i].VideoStreams) > 0 {
			return &outputs[i].VideoStreams[0]
		}
	}
	return nil
}
