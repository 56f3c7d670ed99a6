package buf

// Seq is an owning, planar (channel-major) PCM buffer: Spec().Frames()
// contiguous samples per channel, Spec().Channels() channels back to
// back. It is the decode-export scratch backing for package sound.
type Seq[T Sample] struct {
	data []T
	spec Spec
	pos  int
	len  int
}

// NewSeq allocates a zeroed planar buffer of the given Spec.
func NewSeq[T Sample](spec Spec) *Seq[T] {
	return &Seq[T]{
		data: make([]T, spec.Frames()*spec.Channels()),
		spec: spec,
	}
}

func (s *Seq[T]) Spec() Spec { return s.spec }

func (s *Seq[T]) Frame(n int) Frame[T] {
	if n < 0 || n > s.spec.Frames() {
		panic("buf: frame index out of range")
	}
	return seqFrame[T]{data: s.data, framesPerChannel: s.spec.Frames(), idx: n}
}

func (s *Seq[T]) FrameMut(n int) FrameMut[T] {
	if n < 0 || n > s.spec.Frames() {
		panic("buf: frame index out of range")
	}
	return seqFrame[T]{data: s.data, framesPerChannel: s.spec.Frames(), idx: n}
}

func (s *Seq[T]) Frames() *FrameIter[T]       { return NewFrameIter[T](s) }
func (s *Seq[T]) FramesMut() *FrameMutIter[T] { return NewFrameMutIter[T](s) }

func (s *Seq[T]) Pos() int      { return s.pos }
func (s *Seq[T]) Len() int      { return s.len }
func (s *Seq[T]) IsEmpty() bool { return s.pos == s.len }

func (s *Seq[T]) SetPos(n int) { s.pos = clampInt(n, 0, s.len) }
func (s *Seq[T]) SetLen(n int) { s.len = clampInt(n, 0, s.spec.Frames()) }

// seqFrame is a zero-copy handle into a planar Seq's backing slice.
type seqFrame[T Sample] struct {
	data             []T
	framesPerChannel int
	idx              int
}

func (f seqFrame[T]) At(channel int) T { return f.data[channel*f.framesPerChannel+f.idx] }
func (f seqFrame[T]) Set(channel int, v T) {
	f.data[channel*f.framesPerChannel+f.idx] = v
}
