// Package spider runs magneticod as a child process and turns its
// stdout, one discovered torrent per line of JSON, into a Go channel.
package spider

import (
	"bufio"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/oxidized-project/oxidized/internal/errors"
)

// Torrent is one info-hash discovery reported by magneticod.
type Torrent struct {
	Name     string `json:"name"`
	InfoHash string `json:"infoHash"`
	Files    []File `json:"files"`
}

// File is one entry in a discovered torrent's file list.
type File struct {
	Size int64  `json:"size"`
	Path string `json:"path"`
}

// Spider locates and runs the magneticod binary.
type Spider struct {
	path string
}

// New resolves the magneticod binary relative to the process's current
// working directory, matching the original indexer's lookup.
func New() (*Spider, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, "resolving working directory: %v", err)
	}
	return &Spider{path: filepath.Join(wd, "magneticod")}, nil
}

// Start launches magneticod with its stdout database sink and returns an
// unbuffered channel of discovered torrents; each send blocks until the
// consumer receives it. The channel is closed when the child process's
// stdout is closed or a line fails to decode.
func (s *Spider) Start() (<-chan Torrent, error) {
	cmd := exec.Command(s.path, "--database=stdout://")
	cmd.Stderr = nil

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "opening magneticod stdout: %v", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "starting magneticod: %v", err)
	}

	out := make(chan Torrent)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 1<<20)

		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}

			var t Torrent
			if err := json.Unmarshal([]byte(line), &t); err != nil {
				log.Error().Err(err).Str("line", line).Msg("cannot decode magneticod output, terminating ingest")
				break
			}

			out <- t
		}
		if err := scanner.Err(); err != nil {
			log.Warn().Err(err).Msg("magneticod stdout scanner stopped")
		}

		_ = cmd.Wait()
	}()

	return out, nil
}
