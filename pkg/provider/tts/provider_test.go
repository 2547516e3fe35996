package tts_test

import (
	"context"
	"errors"
	"testing"

	audiomock "github.com/jcoronado1982/real-time-translator/pkg/audio/mock"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/tts"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/tts/mock"
)

func TestSpeaker_RendersAndPlays(t *testing.T) {
	r := &mock.Renderer{Audio: tts.Audio{PCM: []int16{1, 2, 3}, SampleRate: 22050}}
	p := &audiomock.Player{}
	s := tts.NewSpeaker(r, p)

	if err := s.Speak(context.Background(), "Hello."); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	calls := p.Calls()
	if len(calls) != 1 || calls[0].SampleRate != 22050 || len(calls[0].PCM) != 3 {
		t.Fatalf("Play calls = %+v", calls)
	}
}

func TestSpeaker_SkipsBlankAndSilentAudio(t *testing.T) {
	r := &mock.Renderer{}
	p := &audiomock.Player{}
	s := tts.NewSpeaker(r, p)

	if err := s.Speak(context.Background(), "   "); err != nil {
		t.Fatalf("Speak blank: %v", err)
	}
	if len(r.Calls) != 0 {
		t.Errorf("blank text was rendered")
	}
	if err := s.Speak(context.Background(), "Hi"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if len(p.Calls()) != 0 {
		t.Errorf("empty audio was played")
	}
}

func TestSpeaker_Errors(t *testing.T) {
	renderErr := errors.New("model crashed")
	playErr := errors.New("device busy")

	s := tts.NewSpeaker(&mock.Renderer{Err: renderErr}, &audiomock.Player{})
	if err := s.Speak(context.Background(), "x"); !errors.Is(err, renderErr) {
		t.Errorf("render err = %v", err)
	}

	s = tts.NewSpeaker(&mock.Renderer{Audio: tts.Audio{PCM: []int16{1}, SampleRate: 16000}}, &audiomock.Player{PlayErr: playErr})
	if err := s.Speak(context.Background(), "x"); !errors.Is(err, playErr) {
		t.Errorf("play err = %v", err)
	}
}
