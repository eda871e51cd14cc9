package testutil

import (
	"context"
	"errors"
	"iter"
	"sync"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// FakeLLM is a scripted model.LLM. Each GenerateContent call yields the
// chunks of the next scripted reply; Err, when set, is returned instead.
// With ErrMidStream, Err follows the streamed chunks in place of the
// closing response. When FunctionCalls has an entry for a call, that call
// answers with the function calls instead of text.
type FakeLLM struct {
	ModelName     string
	Replies       [][]string
	FunctionCalls map[int][]*genai.FunctionCall
	Err           error
	ErrMidStream  bool

	mu       sync.Mutex
	calls    int
	Requests []*model.LLMRequest
}

func (f *FakeLLM) Name() string { return f.ModelName }

func (f *FakeLLM) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	f.mu.Lock()
	f.Requests = append(f.Requests, req)
	idx := f.calls
	f.calls++
	f.mu.Unlock()

	return func(yield func(*model.LLMResponse, error) bool) {
		if f.Err != nil && !f.ErrMidStream {
			yield(nil, f.Err)
			return
		}
		if err := ctx.Err(); err != nil {
			yield(nil, err)
			return
		}
		if calls := f.FunctionCalls[idx]; len(calls) > 0 {
			content := &genai.Content{Role: genai.RoleModel}
			for _, fc := range calls {
				content.Parts = append(content.Parts, &genai.Part{FunctionCall: fc})
			}
			yield(&model.LLMResponse{Content: content}, nil)
			return
		}
		var chunks []string
		if idx < len(f.Replies) {
			chunks = f.Replies[idx]
		}

		full := ""
		for _, c := range chunks {
			full += c
			if stream {
				if !yield(textResponse(c, true), nil) {
					return
				}
			}
		}
		if f.Err != nil {
			yield(nil, f.Err)
			return
		}
		yield(textResponse(full, false), nil)
	}
}

// Calls returns how many times GenerateContent was invoked.
func (f *FakeLLM) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func textResponse(text string, partial bool) *model.LLMResponse {
	return &model.LLMResponse{
		Content: genai.NewContentFromText(text, genai.RoleModel),
		Partial: partial,
	}
}

// FakeProvider hands out models by name. Names in Fail return an error;
// unknown names get a FakeLLM with no replies.
type FakeProvider struct {
	Models map[string]model.LLM
	Fail   map[string]error

	mu        sync.Mutex
	Requested []string
}

func (p *FakeProvider) CreateModelWithName(_ context.Context, name string) (model.LLM, error) {
	p.mu.Lock()
	p.Requested = append(p.Requested, name)
	p.mu.Unlock()

	if err, ok := p.Fail[name]; ok {
		if err == nil {
			err = errors.New("model unavailable")
		}
		return nil, err
	}
	if m, ok := p.Models[name]; ok {
		return m, nil
	}
	return &FakeLLM{ModelName: name}, nil
}
