package source

import (
	"context"
	"fmt"
	"io"
	"time"

	"gocv.io/x/gocv"
)

// Capture is a Source backed by OpenCV's VideoCapture, suitable for RTSP
// URLs and local video files.
type Capture struct {
	URI string
}

func NewCapture(uri string) *Capture {
	return &Capture{URI: uri}
}

func (c *Capture) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cap, err := gocv.OpenVideoCapture(c.URI)
	if err != nil {
		return nil, fmt.Errorf("open capture %v: %v", c.URI, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("capture %v did not open", c.URI)
	}
	return &captureStream{cap: cap, mat: gocv.NewMat()}, nil
}

type captureStream struct {
	cap *gocv.VideoCapture
	mat gocv.Mat
}

func (s *captureStream) Read() (Frame, error) {
	if ok := s.cap.Read(&s.mat); !ok {
		return Frame{}, io.EOF
	}
	if s.mat.Empty() {
		return Frame{}, io.EOF
	}
	// ToBytes copies out of the Mat, so the Frame owns its payload and the
	// Mat can be reused for the next read.
	return Frame{
		Time:   time.Now(),
		Data:   s.mat.ToBytes(),
		Width:  s.mat.Cols(),
		Height: s.mat.Rows(),
	}, nil
}

func (s *captureStream) Close() error {
	s.mat.Close()
	return s.cap.Close()
}
