package onnx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"
)

func TestShapeConversion(t *testing.T) {
	assert.Equal(t, ort.Shape{1, 3, 4}, toShape([]int{1, 3, 4}))
	assert.Equal(t, []int{2, 5}, fromShape(ort.NewShape(2, 5)))
	assert.Empty(t, fromShape(ort.Shape{}))
	assert.Equal(t, ort.Shape{1}, toShape(nil))
}

func TestFromValueNil(t *testing.T) {
	_, err := fromValue(nil)
	require.Error(t, err)
}
