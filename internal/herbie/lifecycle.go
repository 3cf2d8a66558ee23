package herbie

import (
	"github.com/John-Robertt/herbie/internal/domain"
	"github.com/John-Robertt/herbie/internal/source"
)

// State 是实例的生命周期阶段。
type State int

const (
	StateUninitialized State = iota
	StateSourceResolved
	StateIndexReady
	StateDownloaded
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSourceResolved:
		return "source_resolved"
	case StateIndexReady:
		return "index_ready"
	case StateDownloaded:
		return "downloaded"
	default:
		return "unknown"
	}
}

// Scope 指定 Invalidate 丢弃的范围。
type Scope int

const (
	// ScopeIndex 丢弃目录，下次访问强制本地生成；已解析的来源保留。
	ScopeIndex Scope = iota + 1
	// ScopeSource 同时丢弃来源，实例切换到本地文件模式。
	ScopeSource
)

// lifecycle 持有实例的全部可变状态；状态只能前进，回退只能通过 invalidate。
type lifecycle struct {
	state State

	resolved *source.Resolved
	attempts []domain.SourceAttempt

	inv *domain.Inventory

	forceGenerate bool
	local         bool
}

func (l *lifecycle) advance(s State) {
	if s > l.state {
		l.state = s
	}
}

func (l *lifecycle) setResolved(r source.Resolved, attempts []domain.SourceAttempt) {
	l.resolved = &r
	l.attempts = attempts
	l.advance(StateSourceResolved)
}

func (l *lifecycle) setInventory(inv domain.Inventory) {
	l.inv = &inv
	l.advance(StateIndexReady)
}

func (l *lifecycle) invalidate(scope Scope) {
	switch scope {
	case ScopeSource:
		l.resolved = nil
		l.attempts = nil
		l.local = true
		fallthrough
	case ScopeIndex:
		l.inv = nil
		l.forceGenerate = true
	}

	switch {
	case l.resolved != nil:
		l.state = StateSourceResolved
	default:
		l.state = StateUninitialized
	}
}
