package devices

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimMotor_Limits(t *testing.T) {
	m := NewSimMotor("m", -1, 1, 0)

	require.NoError(t, m.Set(context.Background(), 0.5))
	assert.Equal(t, 0.5, m.Position())

	err := m.Set(context.Background(), 2)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, 0.5, m.Position())
}

func TestSimMotor_CancelledMove(t *testing.T) {
	m := NewSimMotor("m", -100, 100, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := m.Set(ctx, 50)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0.0, m.Position())
}

func TestSimDetector_PeaksAtCenter(t *testing.T) {
	m := NewSimMotor("m", -10, 10, 0)
	d := NewSimDetector("d", m, 0, 1, 100)
	ctx := context.Background()

	require.NoError(t, d.Trigger(ctx))
	at, err := d.Read(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Set(ctx, 3))
	require.NoError(t, d.Trigger(ctx))
	off, err := d.Read(ctx)
	require.NoError(t, err)

	assert.InDelta(t, 100.0, at["d"].Value.(float64), 1e-9)
	assert.Less(t, off["d"].Value.(float64), at["d"].Value.(float64))
}

func TestSimCamera_Assets(t *testing.T) {
	c := NewSimCamera("cam", "/tmp", 4, 3)
	ctx := context.Background()

	require.NoError(t, c.Trigger(ctx))
	require.NoError(t, c.Trigger(ctx))

	assets := c.CollectAssets()
	require.Len(t, assets, 3)
	assert.Equal(t, "resource", assets[0].Kind)
	assert.Equal(t, "datum", assets[1].Kind)
	assert.Equal(t, "datum", assets[2].Kind)
	assert.Empty(t, c.CollectAssets())

	reading, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, assets[2].Body["datum_id"], reading["cam_image"].Value)
	assert.Equal(t, "FILESTORE:", c.Describe()["cam_image"].External)
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()

	assert.Equal(t, []string{"camera1", "det1", "motor1"}, r.Names())
	assert.True(t, r.Has("motor1"))

	_, err := r.Get("nope")
	assert.ErrorIs(t, err, ErrDeviceNotFound)

	d, err := r.Get("det1")
	require.NoError(t, err)
	_, ok := d.(Triggerable)
	assert.True(t, ok)
}
