package tree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	calls []publishedCall
}

type publishedCall struct {
	path    string
	payload any
}

func (p *recordingPublisher) Publish(_ context.Context, path string, payload any, _, _ bool) error {
	p.calls = append(p.calls, publishedCall{path: path, payload: payload})
	return nil
}

func TestAddNodePublishesAdd(t *testing.T) {
	pub := &recordingPublisher{}
	tr := New(pub)

	_, err := tr.AddNode(context.Background(), nil, "dev", nil)
	require.NoError(t, err)

	require.Len(t, pub.calls, 1)
	assert.Equal(t, "add", pub.calls[0].path)
}

func TestAddAttributePublishesAddThenValueSetOnChange(t *testing.T) {
	pub := &recordingPublisher{}
	tr := New(pub)
	_, err := tr.AddNode(context.Background(), nil, "dev", nil)
	require.NoError(t, err)

	attr, err := tr.AddAttribute(context.Background(), []string{"dev"}, "temp", 10.0, true, nil, nil, nil)
	require.NoError(t, err)
	require.Len(t, pub.calls, 2)
	assert.Equal(t, "dev.add", pub.calls[1].path)

	_, err = attr.HandleSet(context.Background(), 20.0, nil)
	require.NoError(t, err)
	require.Len(t, pub.calls, 3)
	assert.Equal(t, "dev.temp.value.set", pub.calls[2].path)
	assert.Equal(t, 20.0, pub.calls[2].payload)
}

func TestAddMethodRejectsBadSignature(t *testing.T) {
	tr := New(nil)
	_, err := tr.AddNode(context.Background(), nil, "dev", nil)
	require.NoError(t, err)

	_, err = tr.AddMethod(context.Background(), []string{"dev"}, "bad", func() chan int { return nil })
	assert.Error(t, err)
}

func TestRemoveElementPublishesDel(t *testing.T) {
	pub := &recordingPublisher{}
	tr := New(pub)
	_, err := tr.AddNode(context.Background(), nil, "dev", nil)
	require.NoError(t, err)

	err = tr.RemoveElement(context.Background(), nil, "dev")
	require.NoError(t, err)
	require.Len(t, pub.calls, 2)
	assert.Equal(t, "del", pub.calls[1].path)
}

func TestDescribePrunesBelowMaxLevel(t *testing.T) {
	tr := New(nil)
	_, err := tr.AddNode(context.Background(), nil, "dev", nil)
	require.NoError(t, err)
	_, err = tr.AddAttribute(context.Background(), []string{"dev"}, "temp", 10.0, true, nil, nil, nil)
	require.NoError(t, err)

	full, ok := tr.Describe(10).(map[string]any)
	require.True(t, ok)
	dev, ok := full["dev"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, dev, "temp")

	pruned, ok := tr.Describe(0).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "...", pruned["dev"])
}

func TestSearchResolvesNestedPath(t *testing.T) {
	tr := New(nil)
	_, err := tr.AddNode(context.Background(), nil, "dev", nil)
	require.NoError(t, err)
	_, err = tr.AddAttribute(context.Background(), []string{"dev"}, "temp", 10.0, true, nil, nil, nil)
	require.NoError(t, err)

	el, ok := tr.Search([]string{"dev", "temp"})
	require.True(t, ok)
	assert.NotNil(t, el)

	_, ok = tr.Search([]string{"dev", "missing"})
	assert.False(t, ok)
}
