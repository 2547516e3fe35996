package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/jcoronado1982/real-time-translator/pkg/provider/stt"
	sttmock "github.com/jcoronado1982/real-time-translator/pkg/provider/stt/mock"
	translatemock "github.com/jcoronado1982/real-time-translator/pkg/provider/translate/mock"
	ttsmock "github.com/jcoronado1982/real-time-translator/pkg/provider/tts/mock"
)

func TestSTTFallback_Failover(t *testing.T) {
	t.Parallel()
	primary := &sttmock.Transcriber{Err: errors.New("whisper-server down")}
	secondary := &sttmock.Transcriber{Default: "hola mundo", Language: "es"}

	fb := NewSTTFallback(primary, "whisper", FallbackConfig{})
	fb.AddFallback("openai", secondary)

	res, err := fb.Transcribe(context.Background(), make([]float32, 1600))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "hola mundo" {
		t.Errorf("Text = %q", res.Text)
	}
	if primary.CallCount() != 1 || secondary.CallCount() != 1 {
		t.Errorf("calls primary=%d secondary=%d, want 1/1", primary.CallCount(), secondary.CallCount())
	}
	if secondary.Calls[0].Samples != 1600 {
		t.Errorf("secondary saw %d samples, want 1600", secondary.Calls[0].Samples)
	}
}

func TestSTTFallback_AllFail(t *testing.T) {
	t.Parallel()
	fb := NewSTTFallback(&sttmock.Transcriber{Err: errTest}, "a", FallbackConfig{})
	fb.AddFallback("b", &sttmock.Transcriber{TranscribeFunc: func(context.Context, []float32) (stt.Result, error) {
		return stt.Result{}, errTest
	}})
	if _, err := fb.Transcribe(context.Background(), nil); !errors.Is(err, ErrAllFailed) {
		t.Errorf("err = %v, want ErrAllFailed", err)
	}
	if got := fb.Group().Names(); len(got) != 2 {
		t.Errorf("Names = %v", got)
	}
}

func TestTranslateFallback_Failover(t *testing.T) {
	t.Parallel()
	primary := &translatemock.Translator{Err: errors.New("ollama: connection refused")}
	secondary := &translatemock.Translator{Replies: map[string]string{"buenos días": "good morning"}}

	fb := NewTranslateFallback(primary, "ollama", FallbackConfig{})
	fb.AddFallback("openai", secondary)

	got, err := fb.Translate(context.Background(), "buenos días")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "good morning" {
		t.Errorf("Translate = %q", got)
	}
	if in := secondary.Inputs(); len(in) != 1 || in[0] != "buenos días" {
		t.Errorf("secondary inputs = %v", in)
	}
}

func TestTTSFallback_Failover(t *testing.T) {
	t.Parallel()
	primary := &ttsmock.Synthesizer{Err: errors.New("piper: exit status 1")}
	secondary := &ttsmock.Synthesizer{}

	fb := NewTTSFallback(primary, "piper", FallbackConfig{})
	fb.AddFallback("coqui", secondary)

	if err := fb.Speak(context.Background(), "good morning"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if got := secondary.Texts(); len(got) != 1 || got[0] != "good morning" {
		t.Errorf("secondary spoke %v", got)
	}
}

func TestTTSFallback_PrimaryOnly(t *testing.T) {
	t.Parallel()
	primary := &ttsmock.Synthesizer{}
	secondary := &ttsmock.Synthesizer{}
	fb := NewTTSFallback(primary, "piper", FallbackConfig{})
	fb.AddFallback("coqui", secondary)

	if err := fb.Speak(context.Background(), "hello"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if len(primary.Texts()) != 1 || len(secondary.Texts()) != 0 {
		t.Errorf("primary=%v secondary=%v", primary.Texts(), secondary.Texts())
	}
}
