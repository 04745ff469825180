// Package tree implements the local element tree a module owns: the
// root Node, its public add/remove API, and the add/del/value.set
// publish side effects every mutation triggers. Grounded on the
// teacher's internal/eventbus.Bus for the shape of "one owning type
// serializes mutation and fans out a notification", generalized from a
// priority-sorted handler list to vBus's rooted element tree.
package tree

import (
	"context"
	"fmt"
	"sync"

	"github.com/vbus-go/vbus/internal/element"
	"github.com/vbus-go/vbus/internal/wireutil"
)

// Publisher is the narrow bus dependency Tree needs: publishing the
// add/del/value.set notifications. internal/busconn.Conn satisfies it.
type Publisher interface {
	Publish(ctx context.Context, path string, payload any, withID, withHost bool) error
}

// Tree owns the root Node and serializes every mutation behind a single
// lock, resolving spec.md §5's "must either confine mutations to the
// dispatcher's task or add a per-tree lock" in favor of the lock: a Go
// module typically has several goroutines calling the public API
// directly rather than funneling through one task.
type Tree struct {
	mu   sync.RWMutex
	root *element.Node
	bus  Publisher
}

// New creates an empty tree. bus may be nil for a detached tree used in
// tests that do not care about publish side effects.
func New(bus Publisher) *Tree {
	return &Tree{root: element.NewNode(nil), bus: bus}
}

// Root returns the tree's root node. Callers must not mutate it
// directly; use the Tree methods so that publish side effects fire.
func (t *Tree) Root() *element.Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

func (t *Tree) resolveNode(parts []string) (*element.Node, error) {
	el, ok := t.root.SearchPath(parts)
	if !ok {
		return nil, fmt.Errorf("tree: %s: %w", wireutil.JoinPath(parts...), element.ErrPathNotFound)
	}
	node, ok := el.(*element.Node)
	if !ok {
		return nil, fmt.Errorf("tree: %s is not a node", wireutil.JoinPath(parts...))
	}
	return node, nil
}

func (t *Tree) publishMutation(ctx context.Context, parentPath []string, op, uuid string, rendered any) {
	if t.bus == nil {
		return
	}
	subject := wireutil.JoinPath(append(append([]string{}, parentPath...), op)...)
	payload := map[string]any{uuid: rendered}
	if err := t.bus.Publish(ctx, subject, payload, true, true); err != nil {
		// A publish failure never rolls back the local mutation: the
		// tree's local state still stands per spec.md §7.
		return
	}
}

// AddNode creates a new empty child node under parentPath and publishes
// the add notification. onSet may be nil.
func (t *Tree) AddNode(ctx context.Context, parentPath []string, uuid string, onSet func(context.Context, any, []string) (any, error)) (*element.Node, error) {
	t.mu.Lock()
	parent, err := t.resolveNode(parentPath)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	child := element.NewNode(onSet)
	parent.AddChild(uuid, child)
	t.mu.Unlock()

	t.publishMutation(ctx, parentPath, "add", uuid, child.ToRepr())
	return child, nil
}

// AddAttribute creates a new attribute under parentPath and publishes
// the add notification. A later successful set on the attribute
// publishes <parentPath>.<uuid>.value.set.
func (t *Tree) AddAttribute(ctx context.Context, parentPath []string, uuid string, value any, hasValue bool, schema map[string]any, onSet func(context.Context, any) error, onGet func(context.Context) (any, error)) (*element.Attribute, error) {
	t.mu.Lock()
	parent, err := t.resolveNode(parentPath)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	attr := element.NewAttribute(value, hasValue, schema, onSet, onGet)
	attrPath := append(append([]string{}, parentPath...), uuid)
	attr.SetOnChanged(func(newValue any) {
		t.publishValueChange(ctx, attrPath, newValue)
	})
	parent.AddChild(uuid, attr)
	t.mu.Unlock()

	t.publishMutation(ctx, parentPath, "add", uuid, attr.ToRepr())
	return attr, nil
}

func (t *Tree) publishValueChange(ctx context.Context, attrPath []string, value any) {
	if t.bus == nil {
		return
	}
	subject := wireutil.JoinPath(append(append([]string{}, attrPath...), "value", "set")...)
	_ = t.bus.Publish(ctx, subject, value, true, true)
}

// AddMethod introspects fn and adds it as a method under parentPath.
func (t *Tree) AddMethod(ctx context.Context, parentPath []string, uuid string, fn any) (*element.Method, error) {
	method, err := element.NewMethod(fn)
	if err != nil {
		return nil, fmt.Errorf("tree: add method %s: %w", uuid, err)
	}

	t.mu.Lock()
	parent, err := t.resolveNode(parentPath)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	parent.AddChild(uuid, method)
	t.mu.Unlock()

	t.publishMutation(ctx, parentPath, "add", uuid, method.ToRepr())
	return method, nil
}

// RemoveElement removes the named child of parentPath and publishes the
// del notification.
func (t *Tree) RemoveElement(ctx context.Context, parentPath []string, uuid string) error {
	t.mu.Lock()
	parent, err := t.resolveNode(parentPath)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	removed, ok := parent.RemoveChild(uuid)
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("tree: remove %s: %w", uuid, element.ErrPathNotFound)
	}

	t.publishMutation(ctx, parentPath, "del", uuid, removed.ToRepr())
	return nil
}

// GetAttribute searches locally for an attribute at parts.
func (t *Tree) GetAttribute(parts ...string) (*element.Attribute, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	el, ok := t.root.SearchPath(parts)
	if !ok {
		return nil, false
	}
	attr, ok := el.(*element.Attribute)
	return attr, ok
}

// GetMethod searches locally for a method at parts.
func (t *Tree) GetMethod(parts ...string) (*element.Method, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	el, ok := t.root.SearchPath(parts)
	if !ok {
		return nil, false
	}
	method, ok := el.(*element.Method)
	return method, ok
}

// Search resolves an arbitrary path under the lock, for the dispatcher.
func (t *Tree) Search(parts []string) (element.Element, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root.SearchPath(parts)
}

// Describe renders the tree, replacing any value at depth greater than
// maxLevel with the literal string "...".
func (t *Tree) Describe(maxLevel int) any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return pruneDepth(t.root.ToRepr(), 0, maxLevel)
}

func pruneDepth(v any, depth, maxLevel int) any {
	if depth > maxLevel {
		if _, isMap := v.(map[string]any); isMap {
			return "..."
		}
		return v
	}
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(m))
	for k, child := range m {
		out[k] = pruneDepth(child, depth+1, maxLevel)
	}
	return out
}
