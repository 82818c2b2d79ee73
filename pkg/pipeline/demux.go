package pipeline

import (
	"context"
	"errors"
	"io"

	"github.com/user/avplay/pkg/ports"
)

// runDemux reads packets from the source into the packet stage until it is
// told to stop. End of input is not an exit condition: the task idles so
// that a later seek can resume reading.
func (p *Pipeline) runDemux(ctx context.Context) error {
	logger := p.logger.WithComponent("demux")
	logger.Debug("Demux task started")
	defer logger.Debug("Demux task stopped")

	for {
		if p.stopDemux.Load() || ctx.Err() != nil {
			return nil
		}
		if p.packets.Full() {
			p.sleep(ctx)
			continue
		}
		if !p.demuxOnce(logger) {
			p.sleep(ctx)
		}
	}
}

// demuxOnce reads one packet and routes it. It returns false when the task
// should back off before trying again.
func (p *Pipeline) demuxOnce(logger ports.Logger) bool {
	p.sourceMu.Lock()
	gen := p.seekGen.Load()
	if p.sourceEOF.Load() {
		p.sourceMu.Unlock()
		return false
	}
	pkt, err := p.collab.Demuxer.NextPacket()
	if errors.Is(err, io.EOF) {
		p.sourceEOF.Store(true)
	}
	p.sourceMu.Unlock()

	switch {
	case errors.Is(err, io.EOF):
		logger.Debug("End of input reached")
		return false
	case err != nil:
		p.stats.demuxErrors.Add(1)
		logger.Warn("Failed to read packet: %s", err)
		return false
	case pkt == nil:
		return false
	}

	table := p.streamTable()
	if table.HasCover() && pkt.StreamIndex == table.Cover {
		p.cover.store(pkt.Data)
		p.stats.coverUpdates.Add(1)
		logger.Debug("Cover image updated: %d bytes", len(pkt.Data))
		return true
	}

	p.packets.Lock()
	defer p.packets.Unlock()
	if p.seekGen.Load() != gen {
		// A seek ran after the read; the packet belongs to the old position.
		p.stats.packetsDiscarded.Add(1)
		return true
	}
	p.packets.PushLocked(pkt)
	p.stats.packetsDemuxed.Add(1)
	return true
}
