package core

import (
	"errors"
)

var (
	ErrSwapchainBooting     = errors.New("swapchain resized or recreated, booting")
	ErrFunctionNotFound     = errors.New("shader function not found in library")
	ErrPipelineCompile      = errors.New("pipeline state creation failed")
	ErrVertexLayoutMismatch = errors.New("vertex layout does not match program inputs")
	ErrDeviceLost           = errors.New("gpu device lost")
	ErrNoDrawable           = errors.New("no drawable available")
	ErrComputeUnsupported   = errors.New("compute pipelines not supported by backend")
	ErrInvalidSlotState     = errors.New("invalid frame slot state transition")
	ErrSlotNotOwned         = errors.New("frame slot does not belong to this pool")
	ErrNodeCycle            = errors.New("node cannot be a descendant of itself")
	ErrNodeHasParent        = errors.New("node already has a parent")
	ErrNilNode              = errors.New("node is nil")
	ErrInvalidVertexData    = errors.New("vertex data is not a multiple of the vertex stride")
	ErrEmptyMesh            = errors.New("mesh has no vertices")
	ErrUnknownBackend       = errors.New("unknown renderer backend")
	ErrUnsupportedConfig    = errors.New("unsupported configuration value")
	ErrUnknown              = errors.New("unknown")
)
