package kdf

import (
	"encoding/binary"

	"lukechampine.com/blake3"
)

// balloonParams are the Balloon hash (Boneh, Corrigan-Gibbs, Schechter)
// tuning knobs: s_cost is the number of 32-byte blocks in the working
// buffer (space cost), t_cost the number of mixing rounds (time cost),
// and delta the number of extra mixing edges drawn per block per round.
type balloonParams struct {
	sCost uint64
	tCost uint64
	delta uint64
}

// balloonHash computes Balloon hash over BLAKE3 as the compression
// function, following the algorithm described in
// original_source/dexios-core/src/key.rs's balloon_hash (itself a
// thin wrapper over the Rust balloon_hash crate's Balloon<blake3::Hasher>).
// No maintained Go package implements Balloon hashing, so this is a
// direct hand-rolled implementation atop lukechampine.com/blake3.
func balloonHash(password, salt []byte, params balloonParams, out []byte) {
	const blockLen = 32

	buf := make([][blockLen]byte, params.sCost)
	var cnt uint64

	h := func(parts ...[]byte) [blockLen]byte {
		hasher := blake3.New(blockLen, nil)
		var cntBuf [8]byte
		binary.LittleEndian.PutUint64(cntBuf[:], cnt)
		cnt++
		hasher.Write(cntBuf[:])
		for _, p := range parts {
			hasher.Write(p)
		}
		var out [blockLen]byte
		copy(out[:], hasher.Sum(nil))
		return out
	}

	buf[0] = h(password, salt)
	for m := uint64(1); m < params.sCost; m++ {
		buf[m] = h(buf[m-1][:])
	}

	for t := uint64(0); t < params.tCost; t++ {
		for m := uint64(0); m < params.sCost; m++ {
			prev := buf[(m+params.sCost-1)%params.sCost]
			buf[m] = h(prev[:], buf[m][:])

			for i := uint64(0); i < params.delta; i++ {
				var tBuf, mBuf, iBuf [8]byte
				binary.LittleEndian.PutUint64(tBuf[:], t)
				binary.LittleEndian.PutUint64(mBuf[:], m)
				binary.LittleEndian.PutUint64(iBuf[:], i)
				idxBlock := h(salt, tBuf[:], mBuf[:], iBuf[:])
				other := binary.LittleEndian.Uint64(idxBlock[:8]) % params.sCost
				buf[m] = h(buf[m][:], buf[other][:])
			}
		}
	}

	final := buf[params.sCost-1]
	copy(out, final[:])
	for i := range buf {
		buf[i] = [blockLen]byte{}
	}
}
