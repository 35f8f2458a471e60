package testdoubles

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"
)

// Store keeps objects in memory and fails operations on keys listed in
// GetErrors or PutErrors.
type Store struct {
	Prefix    string
	Objects   map[string][]byte
	Types     map[string]string
	GetErrors map[string]error
	PutErrors map[string]error
	UrlError  error
	mutex     sync.Mutex
}

func NewStore() *Store {
	return &Store{
		Objects:   map[string][]byte{},
		Types:     map[string]string{},
		GetErrors: map[string]error{},
		PutErrors: map[string]error{},
	}
}

func (s *Store) Key(name string) string {
	return path.Join(s.Prefix, name)
}

func (s *Store) Put(
	_ context.Context, key, contentType string, data []byte,
) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.PutErrors[key]; err != nil {
		return err
	}
	s.Objects[key] = data
	s.Types[key] = contentType
	return nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.GetErrors[key]; err != nil {
		return nil, err
	} else if data, ok := s.Objects[key]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("object not found: %s", key)
}

func (s *Store) Url(
	_ context.Context, key string, expiry time.Duration,
) (string, error) {
	if s.UrlError != nil {
		return "", s.UrlError
	}
	return fmt.Sprintf("https://test-bucket.local/%s?expires=%s", key, expiry), nil
}
