package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnitConverterMetric(t *testing.T) {
	u := NewUnitConverter("metric")
	assert.Equal(t, "km", u.Unit())
	assert.Equal(t, 10.0, u.Distance(10.0))
	assert.Nil(t, u.DistancePtr(nil))
}

func TestUnitConverterImperial(t *testing.T) {
	u := NewUnitConverter("imperial")
	assert.Equal(t, "mi", u.Unit())
	assert.InDelta(t, 6.21, u.Distance(10.0), 0.001)

	km := 21.0975 // half marathon
	mi := u.DistancePtr(&km)
	assert.InDelta(t, 13.11, *mi, 0.001)
}

func TestUnitConverterUnknownFallsBackToMetric(t *testing.T) {
	u := NewUnitConverter("nautical")
	assert.Equal(t, "km", u.Unit())
	assert.Equal(t, 5.0, u.Distance(5.0))
}
