package kube

import "sync"

const DefaultNamespace = "default"

// NamespaceScope tracks the namespace the harness currently works in.
type NamespaceScope struct {
	mu      sync.Mutex
	current string
}

func NewNamespaceScope() *NamespaceScope {
	return &NamespaceScope{current: DefaultNamespace}
}

func (s *NamespaceScope) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *NamespaceScope) set(ns string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = ns
}
