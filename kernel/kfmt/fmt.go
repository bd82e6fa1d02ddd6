// Package kfmt provides a minimal, allocation-free Printf implementation that
// can be safely used by the memory manager even before dynamic allocation is
// available.
package kfmt

import "io"

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	// numFmtBuf is a shared buffer for formatting numbers.
	numFmtBuf = []byte("01234567890123456789012345678901")

	// singleByte is used as a shared buffer for passing single characters
	// to Write calls.
	singleByte = []byte(" ")

	// earlyPrintBuffer is a ring buffer that stores Printf output emitted
	// before an output sink has been registered.
	earlyPrintBuffer ringBuffer

	// outputSink is an io.Writer where Printf will send its output. If set
	// to nil, the output will be redirected to the earlyPrintBuffer.
	outputSink io.Writer
)

// SetOutputSink sets the default target for calls to Printf to w and copies
// any data accumulated in the earlyPrintBuffer to it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyPrintBuffer)
	}
}

// Printf works like Fprintf with the registered output sink as its target. If
// no sink has been registered yet, output accumulates in a ring buffer and is
// flushed to the sink once one is set.
func Printf(format string, args ...interface{}) {
	if outputSink != nil {
		Fprintf(outputSink, format, args...)
		return
	}

	Fprintf(&earlyPrintBuffer, format, args...)
}

// Fprintf provides a minimal fmt.Fprintf replacement that does not allocate
// any memory. It supports the following subset of formatting verbs:
//
// Strings:
//	%s	the uninterpreted bytes of the string or byte slice
//
// Integers:
//	%o	base 8
//	%d	base 10
//	%x	base 16, with lower-case letters for a-f
//
// Booleans:
//	%t	"true" or "false"
//
// Width is specified by an optional decimal number immediately preceding the
// verb. If absent, the width is whatever is necessary to represent the value.
// String and base-10 values shorter than the specified width are left-padded
// with spaces while base-16 values are left-padded with zeroes.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		argIndex int
		width    int
	)

	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			writeByte(w, format[i])
			continue
		}

		// Parse optional width preceding the verb
		for width, i = 0, i+1; i < len(format) && format[i] >= '0' && format[i] <= '9'; i++ {
			width = width*10 + int(format[i]-'0')
		}

		if i >= len(format) {
			w.Write(errNoVerb)
			return
		}

		if format[i] == '%' {
			writeByte(w, '%')
			continue
		}

		if argIndex >= len(args) {
			w.Write(errMissingArg)
			continue
		}

		switch format[i] {
		case 's':
			fmtString(w, args[argIndex], width)
		case 'o':
			fmtInt(w, args[argIndex], 8, width)
		case 'd':
			fmtInt(w, args[argIndex], 10, width)
		case 'x':
			fmtInt(w, args[argIndex], 16, width)
		case 't':
			fmtBool(w, args[argIndex])
		default:
			w.Write(errNoVerb)
		}
		argIndex++
	}

	if argIndex < len(args) {
		w.Write(errExtraArg)
	}
}

// fmtBool prints "true" or "false" depending on the value of v.
func fmtBool(w io.Writer, v interface{}) {
	switch val := v.(type) {
	case bool:
		if val {
			w.Write(trueValue)
			return
		}
		w.Write(falseValue)
	default:
		w.Write(errWrongArgType)
	}
}

// fmtString prints the contents of a string or byte slice left-padded with
// spaces to the requested width.
func fmtString(w io.Writer, v interface{}, width int) {
	switch val := v.(type) {
	case string:
		for pad := width - len(val); pad > 0; pad-- {
			writeByte(w, ' ')
		}
		for i := 0; i < len(val); i++ {
			writeByte(w, val[i])
		}
	case []byte:
		for pad := width - len(val); pad > 0; pad-- {
			writeByte(w, ' ')
		}
		w.Write(val)
	default:
		w.Write(errWrongArgType)
	}
}

// fmtInt prints an integer value in the requested base. Base-16 values are
// left-padded with zeroes and all other bases with spaces.
func fmtInt(w io.Writer, v interface{}, base, width int) {
	var (
		val      uint64
		negative bool
	)

	switch num := v.(type) {
	case uint8:
		val = uint64(num)
	case uint16:
		val = uint64(num)
	case uint32:
		val = uint64(num)
	case uint64:
		val = num
	case uint:
		val = uint64(num)
	case uintptr:
		val = uint64(num)
	case int8:
		val, negative = abs(int64(num))
	case int16:
		val, negative = abs(int64(num))
	case int32:
		val, negative = abs(int64(num))
	case int64:
		val, negative = abs(num)
	case int:
		val, negative = abs(int64(num))
	default:
		w.Write(errWrongArgType)
		return
	}

	const digits = "0123456789abcdef"

	index := len(numFmtBuf)
	for {
		index--
		numFmtBuf[index] = digits[val%uint64(base)]
		if val /= uint64(base); val == 0 {
			break
		}
	}

	if negative {
		index--
		numFmtBuf[index] = '-'
	}

	padChar := byte(' ')
	if base == 16 {
		padChar = '0'
	}

	for index > 0 && len(numFmtBuf)-index < width {
		index--
		numFmtBuf[index] = padChar
	}

	w.Write(numFmtBuf[index:])
}

// abs returns the absolute value of v and a flag indicating whether v was
// negative.
func abs(v int64) (uint64, bool) {
	if v < 0 {
		return uint64(-v), true
	}
	return uint64(v), false
}

// writeByte emits a single byte to w through the shared single-byte buffer.
func writeByte(w io.Writer, b byte) {
	singleByte[0] = b
	w.Write(singleByte)
}
