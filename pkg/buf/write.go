package buf

// Write copies PCM frames from src (starting at src.Pos()) into dst
// (starting at dst.Len()), converting each sample slot from S to D.
// It copies at most min(src.Len()-src.Pos(),
// dst.Spec().Frames()-dst.Len()) frames, advances both cursors by the
// number of frames actually copied, and returns that count.
//
// Any Buf of a PCM sample type is a valid Write source; this is a
// function rather than a method set because Go generics have no blanket
// "any Buf is also a Write" impl the way a Rust trait bound does.
func Write[S, D Sample](src Buf[S], dst BufMut[D]) int {
	p1 := src.Pos()
	p2 := dst.Len()

	channels := src.Spec().Channels()
	if dc := dst.Spec().Channels(); dc < channels {
		channels = dc
	}
	srcIt := src.Frames().Skip(p1)
	dstIt := dst.FramesMut().Skip(p2)

	n := 0
	for p1+n < src.Len() {
		sf, ok1 := srcIt.Next()
		if !ok1 {
			break
		}
		df, ok2 := dstIt.Next()
		if !ok2 {
			break
		}
		for ch := 0; ch < channels; ch++ {
			df.Set(ch, convertSample[S, D](sf.At(ch)))
		}
		n++
	}

	src.SetPos(p1 + n)
	dst.SetLen(p2 + n)

	return n
}

// WriteAll repeats Write until dst is completely filled or src makes no
// further progress, which prevents spinning forever against a drained
// source mid-callback.
func WriteAll[S, D Sample](src Buf[S], dst BufMut[D]) {
	for dst.Len() < dst.Spec().Frames() {
		if Write(src, dst) == 0 {
			return
		}
	}
}
