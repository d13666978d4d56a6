package hal

import "sync"

// memFramebuffer is an RGB565 framebuffer held in memory. Present publishes
// the current contents as a new frame.
type memFramebuffer struct {
	mu     sync.Mutex
	width  int
	height int
	stride int
	buf    []byte
	frame  uint64
}

func newMemFramebuffer(width, height int) *memFramebuffer {
	stride := width * 2
	return &memFramebuffer{
		width:  width,
		height: height,
		stride: stride,
		buf:    make([]byte, stride*height),
	}
}

func (f *memFramebuffer) Width() int          { return f.width }
func (f *memFramebuffer) Height() int         { return f.height }
func (f *memFramebuffer) Format() PixelFormat { return PixelFormatRGB565 }
func (f *memFramebuffer) StrideBytes() int    { return f.stride }
func (f *memFramebuffer) Buffer() []byte      { return f.buf }

func (f *memFramebuffer) Present() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frame++
	return nil
}

func (f *memFramebuffer) ClearRGB(r, g, b uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pixel := rgb565(r, g, b)
	lo := byte(pixel)
	hi := byte(pixel >> 8)
	for i := 0; i < len(f.buf); i += 2 {
		f.buf[i] = lo
		f.buf[i+1] = hi
	}
}

// snapshot copies the buffer into dst when a frame newer than seen was
// presented. It returns the latest frame number and whether dst changed.
func (f *memFramebuffer) snapshot(dst []byte, seen uint64) (uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.frame == seen {
		return seen, false
	}
	copy(dst, f.buf)
	return f.frame, true
}

type memDisplay struct {
	fb Framebuffer
}

func (d memDisplay) Framebuffer() Framebuffer { return d.fb }
