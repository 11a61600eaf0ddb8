package webmonitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"time"

	"github.com/ba7lgj-dev/tape-width-monitor/internal/logger"
)

func writeSSE(w http.ResponseWriter, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// blankJPEG renders the placeholder shown before the first camera frame
// arrives or when the capture loop stalls.
func blankJPEG() ([]byte, error) {
	const width, height = 640, 480
	img := image.NewGray(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		shade := uint8(30 + 40*y/height)
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: shade})
		}
	}
	// Midline marker where the scan row would be
	for x := 0; x < width; x++ {
		img.SetGray(x, height/2, color.Gray{Y: 120})
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 75}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// streamMJPEGFromChannel streams MJPEG from a channel (fanout pattern).
func streamMJPEGFromChannel(w http.ResponseWriter, frameCh <-chan []byte) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")

	blank, err := blankJPEG()
	if err != nil {
		http.Error(w, "Failed to render frame", http.StatusInternalServerError)
		return
	}

	for {
		var jpegData []byte
		select {
		case data, ok := <-frameCh:
			if !ok {
				// Channel closed, client should disconnect
				return
			}
			if data != nil {
				jpegData = data
			} else {
				jpegData = blank
			}
		case <-time.After(5 * time.Second):
			// No frame for 5 seconds, send blank to keep connection alive
			jpegData = blank
		}

		// Write frame with error checking - if client disconnected, exit immediately
		if _, err := w.Write([]byte("--frame\r\nContent-Type: image/jpeg\r\n\r\n")); err != nil {
			logger.Debug("MJPEG", "Client disconnected during write: %v", err)
			return
		}
		if _, err := w.Write(jpegData); err != nil {
			logger.Debug("MJPEG", "Client disconnected during frame write: %v", err)
			return
		}
		if _, err := w.Write([]byte("\r\n")); err != nil {
			logger.Debug("MJPEG", "Client disconnected during delimiter write: %v", err)
			return
		}
		flusher.Flush()
	}
}
