package deepcabac

import (
	"bytes"
	"encoding/binary"
	"encoding/csv"
	"io"
	"io/ioutil"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/fumin/deepcabac/scan"
)

const (
	layerMagic   = "NNCB"
	layerVersion = 1

	// maxWeightsPerByte bounds the weights a payload byte can carry.
	maxWeightsPerByte = 512

	flagDQ                  = 1 << 0
	flagParentNodeIDPresent = 1 << 1
)

// A LayerConfig is everything a decoder needs to know about a stored layer.
type LayerConfig struct {
	LayerParams
	UnaryLength int
}

// layerHeader is the fixed size head of a stored layer, followed by
// NumEntryPoints uint64 entry points, the uint32 payload length and the payload.
type layerHeader struct {
	Magic              [4]byte
	Version            uint8
	Flags              uint8
	ScanOrder          uint8
	Profile            uint8
	UnaryLength        uint16
	LayerWidth         uint32
	NumWeights         uint32
	CodebookSize       uint32
	CodebookZeroOffset uint32
	NumEntryPoints     uint32
}

// EncodeLayer codes the weights w of a layer and returns the stored layer.
func EncodeLayer(w []int32, cfg LayerConfig) ([]byte, error) {
	if cfg.UnaryLength == 0 {
		cfg.UnaryLength = DefaultUnaryLength
	}
	enc := NewEncoder()
	if err := enc.InitContexts(cfg.UnaryLength); err != nil {
		return nil, err
	}
	eps, err := enc.EncodeWeights(w, cfg.LayerParams)
	if err != nil {
		return nil, err
	}
	payload := enc.Finish()

	hdr := layerHeader{
		Version:            layerVersion,
		ScanOrder:          uint8(cfg.ScanOrder),
		Profile:            cfg.Profile,
		UnaryLength:        uint16(cfg.UnaryLength),
		LayerWidth:         uint32(cfg.LayerWidth),
		NumWeights:         uint32(cfg.NumWeights),
		CodebookSize:       uint32(cfg.CodebookSize),
		CodebookZeroOffset: uint32(cfg.CodebookZeroOffset),
		NumEntryPoints:     uint32(len(eps)),
	}
	copy(hdr.Magic[:], layerMagic)
	if cfg.DQ {
		hdr.Flags |= flagDQ
	}
	if cfg.ParentNodeIDPresent {
		hdr.Flags |= flagParentNodeIDPresent
	}

	buf := &bytes.Buffer{}
	for _, v := range []interface{}{hdr, eps, uint32(len(payload))} {
		if err := binary.Write(buf, binary.BigEndian, v); err != nil {
			return nil, errors.Wrap(err, "")
		}
	}
	buf.Write(payload)
	return buf.Bytes(), nil
}

// DecodeLayer decodes a layer stored by EncodeLayer.
// When parallel is set, the segments of the layer are decoded concurrently.
func DecodeLayer(data []byte, parallel bool) ([]int32, LayerConfig, error) {
	r := bytes.NewReader(data)
	hdr := layerHeader{}
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, LayerConfig{}, errors.Wrap(ErrCorruptStream, err.Error())
	}
	if string(hdr.Magic[:]) != layerMagic || hdr.Version != layerVersion {
		return nil, LayerConfig{}, errors.Wrapf(ErrCorruptStream, "magic %q version %d", hdr.Magic[:], hdr.Version)
	}
	if int64(hdr.NumEntryPoints)*8 > int64(r.Len()) {
		return nil, LayerConfig{}, errors.Wrapf(ErrCorruptStream, "%d entry points in %d bytes", hdr.NumEntryPoints, r.Len())
	}
	eps := make([]uint64, hdr.NumEntryPoints)
	var payloadLen uint32
	for _, v := range []interface{}{eps, &payloadLen} {
		if err := binary.Read(r, binary.BigEndian, v); err != nil {
			return nil, LayerConfig{}, errors.Wrap(ErrCorruptStream, err.Error())
		}
	}
	if int64(payloadLen) != int64(r.Len()) {
		return nil, LayerConfig{}, errors.Wrapf(ErrCorruptStream, "payload of %d bytes, %d left", payloadLen, r.Len())
	}
	// Every weight costs at least one context coded bin, and no bin costs less than 1/64 of a bit.
	if hdr.NumWeights > MaxNumWeights || uint64(hdr.NumWeights) > maxWeightsPerByte*uint64(payloadLen) {
		return nil, LayerConfig{}, errors.Wrapf(ErrCorruptStream, "%d weights in %d bytes", hdr.NumWeights, payloadLen)
	}
	payload := data[len(data)-r.Len():]

	cfg := LayerConfig{
		LayerParams: LayerParams{
			LayerWidth:          int(hdr.LayerWidth),
			NumWeights:          int(hdr.NumWeights),
			DQ:                  hdr.Flags&flagDQ != 0,
			ScanOrder:           scan.Order(hdr.ScanOrder),
			Profile:             hdr.Profile,
			ParentNodeIDPresent: hdr.Flags&flagParentNodeIDPresent != 0,
			CodebookSize:        int(hdr.CodebookSize),
			CodebookZeroOffset:  int(hdr.CodebookZeroOffset),
		},
		UnaryLength: int(hdr.UnaryLength),
	}
	if err := cfg.Validate(); err != nil {
		return nil, cfg, err
	}

	w := make([]int32, cfg.NumWeights)
	if parallel && cfg.NumWeights > 0 {
		n, err := DecodeParallel(payload, eps, cfg.UnaryLength, w, nil, cfg.LayerParams)
		if err != nil {
			return nil, cfg, err
		}
		if n != len(payload) {
			return nil, cfg, errors.Wrapf(ErrCorruptStream, "%d trailing bytes", len(payload)-n)
		}
		return w, cfg, nil
	}

	dec := NewDecoder()
	if err := dec.Start(payload); err != nil {
		return nil, cfg, err
	}
	if err := dec.InitContexts(cfg.UnaryLength); err != nil {
		return nil, cfg, err
	}
	dec.SetEntryPoints(eps)
	if err := dec.DecodeWeights(w, cfg.LayerParams); err != nil {
		return nil, cfg, err
	}
	n, err := dec.Terminate()
	if err != nil {
		return nil, cfg, err
	}
	if n != len(payload) {
		return nil, cfg, errors.Wrapf(ErrCorruptStream, "%d trailing bytes", len(payload)-n)
	}
	return w, cfg, nil
}

// Compress reads a layer as CSV of integer levels from src, one line per row of the weight grid,
// and writes the stored layer to dst.
// A zero LayerWidth or NumWeights in cfg is taken from the CSV.
func Compress(dst io.Writer, src io.Reader, cfg LayerConfig) error {
	records, err := csv.NewReader(src).ReadAll()
	if err != nil {
		return errors.Wrap(err, "")
	}
	w := make([]int32, 0, 1024)
	for i, rec := range records {
		for j, field := range rec {
			v, err := strconv.ParseInt(strings.TrimSpace(field), 10, 32)
			if err != nil {
				return errors.Wrapf(err, "row %d column %d", i, j)
			}
			w = append(w, int32(v))
		}
	}
	if cfg.LayerWidth == 0 && len(records) > 0 {
		cfg.LayerWidth = len(records[0])
	}
	if cfg.NumWeights == 0 {
		cfg.NumWeights = len(w)
	}

	data, err := EncodeLayer(w, cfg)
	if err != nil {
		return err
	}
	if _, err := dst.Write(data); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// Decompress reads a stored layer from src and writes its levels to dst as CSV.
func Decompress(dst io.Writer, src io.Reader, parallel bool) error {
	data, err := ioutil.ReadAll(src)
	if err != nil {
		return errors.Wrap(err, "")
	}
	w, cfg, err := DecodeLayer(data, parallel)
	if err != nil {
		return err
	}

	width := cfg.LayerWidth
	if width == 0 {
		width = len(w)
	}
	cw := csv.NewWriter(dst)
	for begin := 0; begin < len(w); begin += width {
		end := begin + width
		if end > len(w) {
			end = len(w)
		}
		rec := make([]string, 0, end-begin)
		for _, v := range w[begin:end] {
			rec = append(rec, strconv.Itoa(int(v)))
		}
		if err := cw.Write(rec); err != nil {
			return errors.Wrap(err, "")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "")
}
