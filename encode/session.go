// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package encode

import (
	"errors"
	"fmt"

	"github.com/gogpu/visbuffer/internal/logging"
	"github.com/gogpu/visbuffer/phase"
)

// SessionState is the state of an encoding session.
type SessionState int

const (
	// SessionIdle means no pass is open.
	SessionIdle SessionState = iota

	// SessionEncoding means a pass is open and accepts phases.
	SessionEncoding

	// SessionSubmitted is terminal: the pass has ended and its commands
	// belong to the submission queue.
	SessionSubmitted
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "Idle"
	case SessionEncoding:
		return "Encoding"
	case SessionSubmitted:
		return "Submitted"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// Report summarizes encoded phases.
type Report struct {
	// Draws is the number of items fully encoded.
	Draws int

	// Skipped is the number of items dropped by a draw failure.
	Skipped int

	// Pass holds the pass counters. Only set by Session.End.
	Pass PassStats

	// Errors holds one *DrawError per skipped item.
	Errors []error
}

// Err joins the item errors, or returns nil if none occurred.
func (r *Report) Err() error { return errors.Join(r.Errors...) }

func (r *Report) add(o Report) {
	r.Draws += o.Draws
	r.Skipped += o.Skipped
	r.Errors = append(r.Errors, o.Errors...)
}

// Session encodes binned phases into one render pass.
//
// State Machine:
//
//	Idle -> Begin() -> Encoding -> End() -> Submitted
//
// Render may be called any number of times while Encoding; phases are
// encoded in call order into the same pass.
//
// Thread Safety:
// Session is NOT safe for concurrent use. Encode each view in its own
// session.
type Session struct {
	functions *DrawFunctions
	pipelines PipelineResolver
	resources Resources

	state SessionState
	pass  *TrackedPass
	total Report
}

// NewSession creates an idle session.
func NewSession(functions *DrawFunctions, pipelines PipelineResolver, resources Resources) *Session {
	return &Session{
		functions: functions,
		pipelines: pipelines,
		resources: resources,
	}
}

// State returns the current state.
func (s *Session) State() SessionState { return s.state }

func (s *Session) check(want SessionState, op string) error {
	switch {
	case s.state == want:
		return nil
	case s.state == SessionSubmitted:
		return fmt.Errorf("%s: %w", op, ErrSessionSubmitted)
	default:
		return fmt.Errorf("%s in state %s: %w", op, s.state, ErrSessionState)
	}
}

// Begin opens the pass scope. The attachments of pass are fixed until End.
func (s *Session) Begin(pass PassEncoder) error {
	if err := s.check(SessionIdle, "begin"); err != nil {
		return err
	}
	s.pass = NewTrackedPass(pass)
	s.state = SessionEncoding
	return nil
}

// UseResources replaces the resources used by later Render calls. Phases
// with their own instance or indirect buffers swap resources between
// Render calls on the same pass.
func (s *Session) UseResources(r Resources) {
	s.resources = r
}

// SetViewport applies a viewport to the open pass. It reports whether the
// pass supports viewports.
func (s *Session) SetViewport(v Viewport) (bool, error) {
	if err := s.check(SessionEncoding, "set viewport"); err != nil {
		return false, err
	}
	return s.pass.SetViewport(v), nil
}

// Render encodes binned in tier order: multidrawable, batchable, then
// unbatchable. An item whose draw fails is logged and skipped; the rest of
// the phase is still encoded.
func (s *Session) Render(binned *phase.BinnedPhase, view ViewBinding) (Report, error) {
	if err := s.check(SessionEncoding, "render"); err != nil {
		return Report{}, err
	}
	var rep Report
	if binned.IsEmpty() {
		return rep, nil
	}
	for _, tier := range [][]phase.DrawItem{binned.Multidrawable, binned.Batchable, binned.Unbatchable} {
		for i := range tier {
			if err := s.draw(&tier[i], &view); err != nil {
				rep.Skipped++
				rep.Errors = append(rep.Errors, err)
				logging.Logger().Warn("encode: draw skipped",
					"phase", binned.Kind, "entity", tier[i].Entity, "err", err)
				continue
			}
			rep.Draws++
		}
	}
	s.total.add(rep)
	return rep, nil
}

func (s *Session) draw(item *phase.DrawItem, view *ViewBinding) error {
	commands, ok := s.functions.Get(item.DrawFunction())
	if !ok {
		return &DrawError{
			Entity:  item.Entity,
			Command: "lookup",
			Err:     fmt.Errorf("%w: %d", ErrUnknownDrawFunction, item.DrawFunction()),
		}
	}
	ctx := drawContext{
		pass:      s.pass,
		item:      item,
		view:      view,
		pipelines: s.pipelines,
		resources: s.resources,
	}
	for _, cmd := range commands {
		if err := cmd.render(&ctx); err != nil {
			return &DrawError{Entity: item.Entity, Command: cmd.String(), Err: err}
		}
	}
	return nil
}

// End closes the pass and moves the session to Submitted. The report
// totals every Render call.
func (s *Session) End() (Report, error) {
	if err := s.check(SessionEncoding, "end"); err != nil {
		return Report{}, err
	}
	s.pass.End()
	s.state = SessionSubmitted
	rep := s.total
	rep.Pass = s.pass.Stats()
	logging.Logger().Debug("encode: pass ended",
		"draws", rep.Draws, "skipped", rep.Skipped,
		"pipeline_binds", rep.Pass.PipelineBinds, "pipeline_skips", rep.Pass.PipelineSkips)
	return rep, nil
}
