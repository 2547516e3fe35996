//go:build !portaudio

package portaudio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jcoronado1982/real-time-translator/pkg/audio"
)

func TestStub_ReportsDeviceUnavailable(t *testing.T) {
	src := New(16000, 2, 30*time.Millisecond, WithDevice("USB"))
	if src.opts.device != "USB" || src.cfg.channels != 2 {
		t.Errorf("options not applied: %+v %+v", src.opts, src.cfg)
	}
	if err := src.Start(context.Background(), audio.NewQueue(1)); !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Errorf("Start err = %v, want ErrDeviceUnavailable", err)
	}
	if err := src.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if err := NewPlayer().Play(context.Background(), []int16{1}, 16000); !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Errorf("Play err = %v, want ErrDeviceUnavailable", err)
	}
	if _, err := ListDevices(); err == nil {
		t.Error("ListDevices should fail without portaudio")
	}
}
