package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	wavHeaderSize = 44

	// streamedDataSize is written by encoders that cannot seek back
	streamedDataSize = 0xFFFFFFFF
)

// ErrInvalidWAV is wrapped by errors for data that cannot be a WAV file
// at all, as opposed to a valid file with a layout this package does not read
var ErrInvalidWAV = errors.New("invalid WAV data")

// WAVHeader is the canonical 44-byte RIFF header for mono PCM-16
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

func newWAVHeader(numSamples, sampleRate int) WAVHeader {
	const (
		numChannels   = uint16(1)
		bitsPerSample = uint16(16)
	)
	dataSize := uint32(numSamples * 2)

	return WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
}

// EncodeWAV encodes mono PCM-16 samples into a complete WAV file
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(samples)*2))

	if err := binary.Write(buf, binary.LittleEndian, newWAVHeader(len(samples), sampleRate)); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeWAV decodes a mono PCM-16 WAV file and returns samples and sample rate
func DecodeWAV(data []byte) ([]int16, int, error) {
	header, err := readHeader(data)
	if err != nil {
		return nil, 0, err
	}

	if header.AudioFormat != 1 {
		return nil, 0, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", header.AudioFormat)
	}

	if header.BitsPerSample != 16 {
		return nil, 0, fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", header.BitsPerSample)
	}

	if header.NumChannels != 1 {
		return nil, 0, fmt.Errorf("unsupported channel count: %d (only mono is supported)", header.NumChannels)
	}

	numSamples := int(header.Subchunk2Size) / 2
	if numSamples <= 0 {
		return nil, 0, fmt.Errorf("no audio data found")
	}

	if len(data) < wavHeaderSize+numSamples*2 {
		return nil, 0, fmt.Errorf("%w: truncated, header declares %d bytes, have %d",
			ErrInvalidWAV, header.Subchunk2Size, len(data)-wavHeaderSize)
	}

	samples := make([]int16, numSamples)
	if err := binary.Read(bytes.NewReader(data[wavHeaderSize:]), binary.LittleEndian, samples); err != nil {
		return nil, 0, fmt.Errorf("failed to read audio samples: %w", err)
	}

	return samples, int(header.SampleRate), nil
}

func readHeader(data []byte) (*WAVHeader, error) {
	if err := ValidateWAV(data); err != nil {
		return nil, err
	}

	var header WAVHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read WAV header: %w", err)
	}
	return &header, nil
}

// ValidateWAV checks the RIFF/WAVE markers without decoding the audio data
func ValidateWAV(data []byte) error {
	if len(data) < wavHeaderSize {
		return fmt.Errorf("%w: need at least %d bytes, got %d", ErrInvalidWAV, wavHeaderSize, len(data))
	}

	if string(data[0:4]) != "RIFF" {
		return fmt.Errorf("%w: missing RIFF header", ErrInvalidWAV)
	}

	if string(data[8:12]) != "WAVE" {
		return fmt.Errorf("%w: missing WAVE format", ErrInvalidWAV)
	}

	if string(data[12:16]) != "fmt " {
		return fmt.Errorf("invalid WAV file: missing fmt chunk")
	}

	if string(data[36:40]) != "data" {
		return fmt.Errorf("invalid WAV file: missing data chunk")
	}

	return nil
}

// WAVInfo holds basic metadata about a WAV file
type WAVInfo struct {
	SampleRate    uint32  `json:"sample_rate"`
	Channels      uint16  `json:"channels"`
	BitsPerSample uint16  `json:"bits_per_sample"`
	Duration      float64 `json:"duration_seconds"`
	DataSize      uint32  `json:"data_size_bytes"`
	NumSamples    uint32  `json:"num_samples"`
}

// GetWAVInfo extracts metadata from a canonical WAV file. Data shorter
// than the declared size is rejected; a streamed header with an unknown
// size is measured from the data present.
func GetWAVInfo(data []byte) (*WAVInfo, error) {
	header, err := readHeader(data)
	if err != nil {
		return nil, err
	}

	if header.SampleRate == 0 || header.BitsPerSample < 8 || header.NumChannels == 0 {
		return nil, fmt.Errorf("%w: sample_rate=%d bits=%d channels=%d",
			ErrInvalidWAV, header.SampleRate, header.BitsPerSample, header.NumChannels)
	}

	have := uint32(len(data) - wavHeaderSize)
	if header.Subchunk2Size == streamedDataSize {
		header.Subchunk2Size = have
	}
	if have < header.Subchunk2Size {
		return nil, fmt.Errorf("%w: truncated, header declares %d bytes, have %d",
			ErrInvalidWAV, header.Subchunk2Size, have)
	}

	frameSize := uint32(header.BitsPerSample) / 8 * uint32(header.NumChannels)
	numSamples := header.Subchunk2Size / frameSize

	return &WAVInfo{
		SampleRate:    header.SampleRate,
		Channels:      header.NumChannels,
		BitsPerSample: header.BitsPerSample,
		Duration:      float64(numSamples) / float64(header.SampleRate),
		DataSize:      header.Subchunk2Size,
		NumSamples:    numSamples,
	}, nil
}
