// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package graph

// Node is one render pass of the graph. Run is called once per view per
// frame, possibly concurrently for different views.
type Node interface {
	Name() string
	Run(ctx *Context, view *View) error
}

// CommandBufferTask generates one command buffer. It runs on the worker
// pool after every node of the frame has run.
type CommandBufferTask func(device Device) (CommandBuffer, error)

type pendingTask struct {
	node  string
	label string
	fn    CommandBufferTask
}

// Context is the per-view frame context handed to nodes.
//
// Thread Safety:
// A Context belongs to one view and is used by one goroutine at a time.
type Context struct {
	device Device
	view   *View
	frame  uint64
	tasks  []pendingTask
	node   string
}

// Device returns the device of the frame.
func (c *Context) Device() Device { return c.device }

// View returns the view being rendered.
func (c *Context) View() *View { return c.view }

// Frame returns the frame number, starting at 1.
func (c *Context) Frame() uint64 { return c.frame }

// AddCommandBufferTask defers command-buffer generation to the worker
// pool. Buffers are submitted in registration order within the view.
func (c *Context) AddCommandBufferTask(label string, task CommandBufferTask) {
	c.tasks = append(c.tasks, pendingTask{node: c.node, label: label, fn: task})
}

// Tasks returns the number of registered tasks.
func (c *Context) Tasks() int { return len(c.tasks) }
