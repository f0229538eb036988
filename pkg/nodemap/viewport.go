package nodemap

// Point is a position in screen coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is the on-screen bounding box of the canvas surface.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Viewport is the current pan and zoom of the canvas.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// DefaultViewport is the identity transform.
var DefaultViewport = Viewport{Zoom: 1}

// Project converts a screen point to canvas coordinates. The point is first
// made relative to bounds, then the pan is removed and the zoom undone.
func (v Viewport) Project(client Point, bounds Rect) Position {
	zoom := v.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	return Position{
		X: (client.X - bounds.Left - v.X) / zoom,
		Y: (client.Y - bounds.Top - v.Y) / zoom,
	}
}
