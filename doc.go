/*
go-maskflow detects objects in every frame of an image sequence with a three
stage Mask R-CNN style inference pipeline (preprocess, detect, postprocess)
and links the per-frame detections across time into object tracks.

The root package drives the stages over a sequence and assembles their
outputs into a DetectionTable and a MaskVolume.  The inference runtime is
consumed through the Engine interface, the onnx subpackage provides an
implementation backed by ONNX Runtime.

Tracking lives in the tracker subpackage, model bundle caching in modelcache
and overlay colouring in render.

See the command in the example subdirectory for end to end usage.
*/
package maskflow
