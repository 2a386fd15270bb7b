package parser

import (
	"sync"
	"testing"
)

func TestParserPool_GetPut(t *testing.T) {
	pool := NewParserPool(csharpLanguage())

	sp := pool.Get()
	if sp == nil {
		t.Fatal("expected non-nil parser from pool")
	}
	if pool.Active() != 1 {
		t.Fatalf("expected 1 active lease, got %d", pool.Active())
	}
	pool.Put(sp)
	if pool.Active() != 0 {
		t.Fatalf("expected no active leases, got %d", pool.Active())
	}
	if pool.OldestLease() != 0 {
		t.Fatalf("expected zero oldest lease with nothing leased")
	}
}

func TestParserPool_PutNil(t *testing.T) {
	pool := NewParserPool(csharpLanguage())
	pool.Put(nil)
}

func TestParserPool_ParsesValidCSharp(t *testing.T) {
	pool := NewParserPool(csharpLanguage())

	sp := pool.Get()
	defer pool.Put(sp)

	src := []byte("class Account { int _balance; }\n")
	tree := sp.Parse(src, nil)
	if tree == nil {
		t.Fatal("expected non-nil parse tree for valid C# source")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		t.Fatalf("expected error-free root node")
	}
	if root.Kind() != "compilation_unit" {
		t.Fatalf("unexpected root kind %q", root.Kind())
	}
}

func TestParserPool_ConcurrentAccess(t *testing.T) {
	pool := NewParserPool(csharpLanguage())

	const goroutines = 16
	const iters = 25

	var wg sync.WaitGroup
	wg.Add(goroutines)

	src := []byte("class A { void Run() { } }\n")

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				sp := pool.Get()
				tree := sp.Parse(src, nil)
				if tree == nil {
					t.Errorf("expected non-nil parse tree")
				} else {
					tree.Close()
				}
				pool.Put(sp)
			}
		}()
	}

	wg.Wait()
	if pool.Active() != 0 {
		t.Fatalf("expected all leases returned, got %d", pool.Active())
	}
}

func TestParserPool_LanguageSetAfterReset(t *testing.T) {
	pool := NewParserPool(csharpLanguage())

	sp := pool.Get()
	sp.Reset()
	pool.Put(sp)

	sp2 := pool.Get()
	defer pool.Put(sp2)

	tree := sp2.Parse([]byte("class B { }\n"), nil)
	if tree == nil {
		t.Fatal("parser should still parse after a reset")
	}
	defer tree.Close()
}
