package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// WindowSize bounds the per-chat dedup window.
const WindowSize = 100

const windowVersion = 1

var errInvalidWindow = errors.New("invalid dedup window")

// windowPayload is the stored form of a dedup window.
type windowPayload struct {
	Version int     `json:"v"`
	IDs     []int64 `json:"ids"`
}

// window is a FIFO of recently seen message ids, oldest first.
type window struct {
	ids []int64
}

// decodeWindow parses a stored window. It also accepts a bare JSON array of
// ids, the format written before the payload was versioned.
func decodeWindow(raw string) (window, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return window{}, fmt.Errorf("%w: empty payload", errInvalidWindow)
	}

	var ids []int64
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return window{}, fmt.Errorf("%w: %v", errInvalidWindow, err)
		}
	} else {
		var payload windowPayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return window{}, fmt.Errorf("%w: %v", errInvalidWindow, err)
		}
		if payload.Version != windowVersion {
			return window{}, fmt.Errorf("%w: unsupported version %d", errInvalidWindow, payload.Version)
		}
		ids = payload.IDs
	}

	if len(ids) > WindowSize {
		return window{}, fmt.Errorf("%w: %d ids exceeds bound %d", errInvalidWindow, len(ids), WindowSize)
	}

	return window{ids: ids}, nil
}

func (w window) encode() (string, error) {
	ids := w.ids
	if ids == nil {
		ids = []int64{}
	}
	data, err := json.Marshal(windowPayload{Version: windowVersion, IDs: ids})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (w window) contains(id int64) bool {
	for _, seen := range w.ids {
		if seen == id {
			return true
		}
	}
	return false
}

// push appends id and evicts the oldest entries beyond WindowSize.
func (w *window) push(id int64) {
	w.ids = append(w.ids, id)
	if overflow := len(w.ids) - WindowSize; overflow > 0 {
		w.ids = append([]int64(nil), w.ids[overflow:]...)
	}
}
