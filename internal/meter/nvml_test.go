package meter

import (
	"testing"

	"codeberg.org/mutker/carbonwise/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNVML struct {
	initErr  error
	energy   map[int]uint64
	count    int
	shutdown bool
}

func (f *fakeNVML) Initialize() error { return f.initErr }

func (f *fakeNVML) Shutdown() error {
	f.shutdown = true
	return nil
}

func (f *fakeNVML) GetDeviceCount() (int, error) { return f.count, nil }

func (f *fakeNVML) GetTotalEnergy(index int) (uint64, error) {
	mj, ok := f.energy[index]
	if !ok {
		return 0, errors.New().New(ErrNVMLEnergy)
	}
	return mj, nil
}

func TestNVMLSourceSumsDevices(t *testing.T) {
	ctrl := &fakeNVML{count: 3, energy: map[int]uint64{0: 1500, 2: 2500}}

	src, err := newNVMLSource(ctrl)
	require.NoError(t, err)
	assert.Equal(t, "nvml", src.Name())
	assert.Zero(t, src.MaxRange())

	v, err := src.Read()
	require.NoError(t, err)
	assert.InDelta(t, 4.0, v, 1e-12)

	require.NoError(t, src.Close())
	assert.True(t, ctrl.shutdown)
}

func TestNVMLSourceWithoutEnergySupport(t *testing.T) {
	ctrl := &fakeNVML{count: 1, energy: map[int]uint64{}}

	_, err := newNVMLSource(ctrl)
	assert.True(t, errors.HasCode(err, ErrSourceUnusable))
	assert.True(t, ctrl.shutdown)
}

func TestNVMLSourceInitFailure(t *testing.T) {
	ctrl := &fakeNVML{initErr: errors.New().New(ErrNVMLInit)}

	_, err := newNVMLSource(ctrl)
	assert.True(t, errors.HasCode(err, ErrNVMLInit))
}
