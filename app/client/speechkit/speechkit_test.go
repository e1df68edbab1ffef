package speechkit

import (
	"chatdigest/app/client/openrouter"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/yandex-cloud/go-genproto/yandex/cloud/ai/stt/v3"
)

type fakeStream struct {
	mu        sync.Mutex
	sent      []*stt.StreamingRequest
	closed    bool
	responses []*stt.StreamingResponse
	recvErr   error
}

func (f *fakeStream) Send(req *stt.StreamingRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, req)
	return nil
}

func (f *fakeStream) Recv() (*stt.StreamingResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.responses) == 0 {
		if f.recvErr != nil {
			return nil, f.recvErr
		}
		return nil, io.EOF
	}

	res := f.responses[0]
	f.responses = f.responses[1:]

	return res, nil
}

func (f *fakeStream) CloseSend() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	return nil
}

func finalResponse(texts ...string) *stt.StreamingResponse {
	alternatives := make([]*stt.Alternative, 0, len(texts))
	for _, text := range texts {
		alternatives = append(alternatives, &stt.Alternative{Text: text})
	}

	var res stt.StreamingResponse
	res.SetFinal(&stt.AlternativeUpdate{Alternatives: alternatives})

	return &res
}

func TestSupports(t *testing.T) {
	y := &YandexSpeechKit{}

	for _, mimeType := range []string{"audio/ogg", "audio/ogg; codecs=opus", "audio/mpeg", "audio/x-wav"} {
		if !y.Supports(mimeType) {
			t.Errorf("expected %q to be supported", mimeType)
		}
	}

	if y.Supports("image/jpeg") {
		t.Error("images are not supported")
	}
}

func TestRecognizeJoinsFinalUtterances(t *testing.T) {
	client := &fakeStream{
		responses: []*stt.StreamingResponse{
			{},
			finalResponse("  ", "oi tudo bem"),
			finalResponse("até amanhã"),
		},
	}

	data := make([]byte, chunkSize*2+10)
	media := openrouter.Media{Data: data, MimeType: "audio/ogg"}

	text, err := recognize(context.Background(), client, media, []string{"pt-BR"})
	if err != nil {
		t.Fatal(err)
	}

	if text != "oi tudo bem até amanhã" {
		t.Errorf("unexpected text %q", text)
	}
	if !client.closed {
		t.Error("expected stream to be closed for sending")
	}

	// session options plus three chunks
	if len(client.sent) != 4 {
		t.Fatalf("expected 4 requests, got %d", len(client.sent))
	}

	options := client.sent[0].GetSessionOptions()
	if options == nil {
		t.Fatal("expected session options first")
	}
	if got := options.GetRecognitionModel().GetLanguageRestriction().GetLanguageCode(); len(got) != 1 || got[0] != "pt-BR" {
		t.Errorf("unexpected languages %v", got)
	}
	if client.sent[1].GetChunk() == nil {
		t.Error("expected audio chunk after session options")
	}
}

func TestRecognizeReceiveError(t *testing.T) {
	client := &fakeStream{recvErr: errors.New("unavailable")}
	media := openrouter.Media{Data: []byte("abc"), MimeType: "audio/wav"}

	if _, err := recognize(context.Background(), client, media, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestRecognizeUnsupported(t *testing.T) {
	media := openrouter.Media{Data: []byte("abc"), MimeType: "audio/flac"}

	if _, err := recognize(context.Background(), &fakeStream{}, media, nil); err == nil {
		t.Fatal("expected error")
	}
}
