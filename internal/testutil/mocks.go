package testutil

import (
	"context"
	"io"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/groqtales/groqtales-server/internal/core/domain"
	"github.com/groqtales/groqtales-server/internal/core/ports"
)

// MockGenerator is a testify mock of ports.Generator.
type MockGenerator struct {
	mock.Mock
}

var _ ports.Generator = (*MockGenerator)(nil)

func (m *MockGenerator) CheckConfig(apiKeyOverride string) error {
	args := m.Called(apiKeyOverride)
	return args.Error(0)
}

func (m *MockGenerator) Generate(ctx context.Context, in *ports.GenerateInput) (*domain.GeneratedStory, error) {
	args := m.Called(ctx, in)
	story, _ := args.Get(0).(*domain.GeneratedStory)
	return story, args.Error(1)
}

func (m *MockGenerator) Stream(ctx context.Context, in *ports.GenerateInput) (ports.ChunkStream, error) {
	args := m.Called(ctx, in)
	stream, _ := args.Get(0).(ports.ChunkStream)
	return stream, args.Error(1)
}

// MockMinter is a testify mock of ports.Minter.
type MockMinter struct {
	mock.Mock
}

var _ ports.Minter = (*MockMinter)(nil)

func (m *MockMinter) Mint(ctx context.Context, meta domain.MintMetadata) (domain.MintResult, error) {
	args := m.Called(ctx, meta)
	result, _ := args.Get(0).(domain.MintResult)
	return result, args.Error(1)
}

// MockChain is a testify mock of ports.ChainConnector.
type MockChain struct {
	mock.Mock
}

var _ ports.ChainConnector = (*MockChain)(nil)

func (m *MockChain) CheckConfig() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockChain) Connect(ctx context.Context) (ports.Minter, error) {
	args := m.Called(ctx)
	minter, _ := args.Get(0).(ports.Minter)
	return minter, args.Error(1)
}

// MockUploader is a testify mock of ports.MetadataUploader.
type MockUploader struct {
	mock.Mock
}

var _ ports.MetadataUploader = (*MockUploader)(nil)

func (m *MockUploader) Upload(ctx context.Context, doc *ports.MetadataDocument) (string, error) {
	args := m.Called(ctx, doc)
	return args.String(0), args.Error(1)
}

// SliceStream is a ChunkStream over fixed chunks, optionally ending in Err
// instead of io.EOF.
type SliceStream struct {
	Chunks []string
	Err    error

	mu     sync.Mutex
	next   int
	closed bool
}

func (s *SliceStream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", io.ErrClosedPipe
	}
	if s.next < len(s.Chunks) {
		c := s.Chunks[s.next]
		s.next++
		return c, nil
	}
	if s.Err != nil {
		return "", s.Err
	}
	return "", io.EOF
}

func (s *SliceStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *SliceStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
