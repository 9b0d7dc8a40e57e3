package sink

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"camdvr/util"
	"camdvr/video/source"
)

// FFmpegSink encodes raw BGR24 frames to an H.264 mp4 file through an ffmpeg
// child process reading from stdin.
type FFmpegSink struct {
	cmd  *exec.Cmd
	pipe io.WriteCloser
	path string
}

func NewFFmpegSink(path string, width, height, fps int) (*FFmpegSink, error) {
	ffmpeg, err := util.LocateFFmpeg()
	if err != nil {
		return nil, err
	}
	c := exec.Command(
		ffmpeg,
		// Raw frames arrive on stdin.
		"-f", "rawvideo",
		"-pixel_format", "bgr24",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-framerate", fmt.Sprintf("%d", fps),
		"-i", "-",
		// h264 with reasonable quality and speed. "preset" can be relaxed if
		// the host is too slow to keep up with encoding.
		"-c:v", "libx264",
		"-preset", "superfast",
		"-crf", "30",
		// Fast-start so files are playable while partially downloaded.
		"-movflags", "+faststart",
		path,
	)
	c.Stderr = os.Stderr

	pipe, err := c.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := c.Start(); err != nil {
		pipe.Close()
		return nil, fmt.Errorf("start ffmpeg: %v", err)
	}
	return &FFmpegSink{cmd: c, pipe: pipe, path: path}, nil
}

func (f *FFmpegSink) Put(frame source.Frame) error {
	if _, err := f.pipe.Write(frame.Data); err != nil {
		return fmt.Errorf("write to ffmpeg for %v: %v", f.path, err)
	}
	return nil
}

// Close stops the frame stream and blocks until ffmpeg has flushed and
// exited, so the file is complete when Close returns.
func (f *FFmpegSink) Close() error {
	if err := f.pipe.Close(); err != nil {
		return err
	}
	if err := f.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg exit for %v: %v", f.path, err)
	}
	return nil
}

// FFmpegProducer is the Producer used for real recordings.
type FFmpegProducer struct{}

func (FFmpegProducer) New(path string, width, height, fps int) (Sink, error) {
	return NewFFmpegSink(path, width, height, fps)
}
