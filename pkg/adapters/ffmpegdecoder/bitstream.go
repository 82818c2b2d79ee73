package ffmpegdecoder

var startCode = []byte{0, 0, 0, 1}

// temporalDelimiter is an AV1 OBU_TEMPORAL_DELIMITER with an empty payload.
var temporalDelimiter = []byte{0x12, 0x00}

// avccToAnnexB converts AVCC format (length-prefixed NALUs) to Annex B format (start code prefixed).
func avccToAnnexB(data []byte) []byte {
	result := make([]byte, 0, len(data)+16)
	offset := 0
	for offset+4 <= len(data) {
		naluLen := int(data[offset])<<24 | int(data[offset+1])<<16 |
			int(data[offset+2])<<8 | int(data[offset+3])
		offset += 4
		if naluLen < 0 || offset+naluLen > len(data) {
			break
		}
		result = append(result, startCode...)
		result = append(result, data[offset:offset+naluLen]...)
		offset += naluLen
	}
	return result
}

// parameterSetPrefix joins out-of-band parameter sets as Annex B NALUs.
func parameterSetPrefix(sets [][]byte) []byte {
	var out []byte
	for _, s := range sets {
		out = append(out, startCode...)
		out = append(out, s...)
	}
	return out
}

var adtsSampleRates = []int{96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050, 16000, 12000, 11025, 8000, 7350}

// adtsConfig is the subset of an AudioSpecificConfig needed for ADTS.
type adtsConfig struct {
	objectType    byte
	freqIndex     byte
	channelConfig byte
}

// parseASC reads the object type, sampling frequency index and channel
// configuration. Without a usable config it assumes AAC-LC at the given
// rate and channel count.
func parseASC(asc []byte, sampleRate, channels int) adtsConfig {
	if len(asc) >= 2 {
		cfg := adtsConfig{
			objectType:    asc[0] >> 3,
			freqIndex:     (asc[0]&0x07)<<1 | asc[1]>>7,
			channelConfig: (asc[1] >> 3) & 0x0F,
		}
		if cfg.objectType > 0 && cfg.objectType < 5 && cfg.freqIndex < 13 {
			return cfg
		}
	}
	cfg := adtsConfig{objectType: 2, freqIndex: 3, channelConfig: byte(channels)}
	for i, r := range adtsSampleRates {
		if r == sampleRate {
			cfg.freqIndex = byte(i)
			break
		}
	}
	return cfg
}

// adtsFrame prefixes a raw AAC access unit with a 7-byte ADTS header.
func adtsFrame(cfg adtsConfig, raw []byte) []byte {
	frameLen := len(raw) + 7
	profile := cfg.objectType - 1
	out := make([]byte, 7, frameLen)
	out[0] = 0xFF
	out[1] = 0xF1 // MPEG-4, no CRC
	out[2] = profile<<6 | cfg.freqIndex<<2 | cfg.channelConfig>>2
	out[3] = (cfg.channelConfig&0x03)<<6 | byte(frameLen>>11)
	out[4] = byte(frameLen >> 3)
	out[5] = byte(frameLen&0x07)<<5 | 0x1F
	out[6] = 0xFC
	return append(out, raw...)
}
