// Package imaging converts between voxel volumes and 2D raster images.
//
// It loads PNG slice stacks into volumes, renders slices and mask overlays
// for previews, pastes previews into montages and downsamples slices into
// flat feature vectors for the baseline classifier.
//
// # Coordinate System
//
// A volume slice is indexed [x][y]. When rendered, x becomes the image row
// and y the image column, so a slice of shape (X, Y) gives an image that is
// Y pixels wide and X pixels tall, with (0,0) at the top-left corner. The
// same mapping is used when reading stacks back from disk.
//
// # Colour
//
// Overlays blend a label colour into the grey slice in CIE-L*a*b* space
// using go-colorful. Label 0 is cyan, label 1 magenta.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Rendering and feature
// extraction are stateless and can run concurrently on different volumes.
//
// # Performance Considerations
//
// Import decodes every slice of every patient. Use one ImageCache per import
// and Clear() it afterwards; cached images are not released otherwise.
package imaging
