package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	detectorModels "go-gatewatch/internal/detector/models"
	"go-gatewatch/internal/pinpoint"
	websocketModels "go-gatewatch/internal/websocket/models"
	websocketServices "go-gatewatch/internal/websocket/services"
	"go-gatewatch/internal/zkill/dto"
	"go-gatewatch/pkg/database"
	"go-gatewatch/pkg/evegateway/killmails"
	"go-gatewatch/pkg/sde"
)

const seenKeyTTL = 12 * time.Hour

// Ingestor is the slice of the detection engine the processor feeds.
type Ingestor interface {
	Ingest(ev *detectorModels.Event) error
	Snapshot() []*detectorModels.CrewSnapshot
}

// KillmailProcessor enriches RedisQ packages into events and feeds them to
// the detection engine.
type KillmailProcessor struct {
	engine     Ingestor
	hub        *websocketServices.Hub
	sdeService sde.SDEService
	esiClient  killmails.Client
	redis      *database.Redis

	maxKillAge time.Duration
}

// NewKillmailProcessor creates a new killmail processor. redis and hub may be
// nil; the esi client is only used when a package arrives without an embedded
// killmail body.
func NewKillmailProcessor(
	engine Ingestor,
	hub *websocketServices.Hub,
	sdeService sde.SDEService,
	esiClient killmails.Client,
	redis *database.Redis,
	maxKillAge time.Duration,
) *KillmailProcessor {
	return &KillmailProcessor{
		engine:     engine,
		hub:        hub,
		sdeService: sdeService,
		esiClient:  esiClient,
		redis:      redis,
		maxKillAge: maxKillAge,
	}
}

// ErrStaleKill is returned for killmails older than the accepted age cutoff.
var ErrStaleKill = fmt.Errorf("killmail exceeds age cutoff")

// ErrDuplicateKill is returned for killmails already seen on the feed.
var ErrDuplicateKill = fmt.Errorf("killmail already processed")

// ProcessKillmail enriches and ingests a single RedisQ package.
func (p *KillmailProcessor) ProcessKillmail(ctx context.Context, pkg *dto.RedisQPackage) error {
	if dup, err := p.markSeen(ctx, pkg.KillID); err != nil {
		slog.Warn("Dedup check failed, processing anyway", "killmail_id", pkg.KillID, "error", err)
	} else if dup {
		return ErrDuplicateKill
	}

	esiKm, err := p.resolveKillmail(ctx, pkg)
	if err != nil {
		return err
	}

	if p.maxKillAge > 0 && time.Since(esiKm.KillmailTime) > p.maxKillAge {
		return ErrStaleKill
	}

	ev := p.buildEvent(esiKm, pkg)

	if err := p.engine.Ingest(ev); err != nil {
		return fmt.Errorf("engine rejected event %d: %w", ev.ID, err)
	}

	p.broadcast(ev)
	return nil
}

// markSeen records the kill ID in Redis and reports whether it was already
// present.
func (p *KillmailProcessor) markSeen(ctx context.Context, killID int64) (bool, error) {
	if p.redis == nil {
		return false, nil
	}
	key := fmt.Sprintf("gatewatch:seen:%d", killID)
	ok, err := p.redis.Client.SetNX(ctx, key, 1, seenKeyTTL).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// resolveKillmail parses the embedded killmail body, falling back to an ESI
// fetch when RedisQ delivered only the reference.
func (p *KillmailProcessor) resolveKillmail(ctx context.Context, pkg *dto.RedisQPackage) (*dto.ESIKillmail, error) {
	if len(pkg.Killmail) > 0 && string(pkg.Killmail) != "null" {
		var esiKm dto.ESIKillmail
		if err := json.Unmarshal(pkg.Killmail, &esiKm); err != nil {
			return nil, fmt.Errorf("failed to parse embedded killmail: %w", err)
		}
		return &esiKm, nil
	}

	if p.esiClient == nil || pkg.ZKB.Hash == "" {
		return nil, fmt.Errorf("package %d has no killmail body and no ESI fallback", pkg.KillID)
	}

	resp, err := p.esiClient.GetKillmail(ctx, pkg.KillID, pkg.ZKB.Hash)
	if err != nil {
		return nil, fmt.Errorf("ESI fallback fetch failed: %w", err)
	}

	esiKm := &dto.ESIKillmail{
		KillmailID:    resp.KillmailID,
		KillmailTime:  resp.KillmailTime,
		SolarSystemID: resp.SolarSystemID,
		Victim: dto.ESIVictim{
			CharacterID:   resp.Victim.CharacterID,
			CorporationID: resp.Victim.CorporationID,
			AllianceID:    resp.Victim.AllianceID,
			FactionID:     resp.Victim.FactionID,
			ShipTypeID:    resp.Victim.ShipTypeID,
			DamageTaken:   resp.Victim.DamageTaken,
		},
	}
	if resp.Victim.Position != nil {
		esiKm.Victim.Position = &dto.Position{
			X: resp.Victim.Position.X,
			Y: resp.Victim.Position.Y,
			Z: resp.Victim.Position.Z,
		}
	}
	esiKm.Attackers = make([]dto.ESIAttacker, len(resp.Attackers))
	for i, att := range resp.Attackers {
		esiKm.Attackers[i] = dto.ESIAttacker{
			CharacterID:    att.CharacterID,
			CorporationID:  att.CorporationID,
			AllianceID:     att.AllianceID,
			FactionID:      att.FactionID,
			ShipTypeID:     att.ShipTypeID,
			WeaponTypeID:   att.WeaponTypeID,
			DamageDone:     att.DamageDone,
			FinalBlow:      att.FinalBlow,
			SecurityStatus: att.SecurityStatus,
		}
	}
	return esiKm, nil
}

// buildEvent converts an ESI killmail plus ZKB metadata into an enriched
// engine event.
func (p *KillmailProcessor) buildEvent(esiKm *dto.ESIKillmail, pkg *dto.RedisQPackage) *detectorModels.Event {
	ev := &detectorModels.Event{
		ID:         esiKm.KillmailID,
		Time:       esiKm.KillmailTime,
		SystemID:   esiKm.SolarSystemID,
		SystemName: p.sdeService.SystemName(esiKm.SolarSystemID),
		RegionName: p.sdeService.RegionName(esiKm.SolarSystemID),
		Value:      pkg.ZKB.TotalValue,
		Awox:       pkg.ZKB.Awox,
	}

	ev.Labels = append(ev.Labels, pkg.ZKB.Labels...)
	if pkg.ZKB.NPC && !ev.HasLabel("npc") {
		ev.Labels = append(ev.Labels, "npc")
	}
	if pkg.ZKB.Solo && !ev.HasLabel("solo") {
		ev.Labels = append(ev.Labels, "solo")
	}

	ev.Victim = detectorModels.Victim{
		CharacterID:   esiKm.Victim.CharacterID,
		CorporationID: esiKm.Victim.CorporationID,
		AllianceID:    esiKm.Victim.AllianceID,
		ShipTypeID:    esiKm.Victim.ShipTypeID,
		ShipCategory:  detectorModels.ShipCategory(p.sdeService.ShipCategory(esiKm.Victim.ShipTypeID)),
	}

	ev.Attackers = make([]detectorModels.Attacker, len(esiKm.Attackers))
	for i, att := range esiKm.Attackers {
		ev.Attackers[i] = detectorModels.Attacker{
			CharacterID:   att.CharacterID,
			CorporationID: att.CorporationID,
			AllianceID:    att.AllianceID,
			FactionID:     att.FactionID,
			ShipTypeID:    att.ShipTypeID,
			WeaponTypeID:  att.WeaponTypeID,
		}
	}

	ev.Location = p.pinpointLocation(esiKm)
	return ev
}

// pinpointLocation resolves the kill position against the system's
// celestials.
func (p *KillmailProcessor) pinpointLocation(esiKm *dto.ESIKillmail) detectorModels.Location {
	loc := detectorModels.Location{Triangulation: detectorModels.TriangulationNone}

	if esiKm.Victim.Position == nil {
		return loc
	}

	celestials, err := p.sdeService.CelestialsInSystem(esiKm.SolarSystemID)
	if err != nil || len(celestials) == 0 {
		return loc
	}

	result := pinpoint.Calculate(celestials, &pinpoint.Vec3{
		X: esiKm.Victim.Position.X,
		Y: esiKm.Victim.Position.Y,
		Z: esiKm.Victim.Position.Z,
	})

	if result.NearestCelestial != nil {
		loc.NearestCelestialName = result.NearestCelestial.Name
	}
	loc.AtCelestial = result.AtCelestial

	switch result.TriangulationType {
	case pinpoint.TypeAtCelestial:
		loc.Triangulation = detectorModels.TriangulationAtCelestial
	case pinpoint.TypeDirectWarp:
		loc.Triangulation = detectorModels.TriangulationDirectWarp
	case pinpoint.TypeNearCelestial:
		loc.Triangulation = detectorModels.TriangulationNearCelestial
	}
	return loc
}

// broadcast pushes the kill and a fresh activity snapshot to subscribers.
func (p *KillmailProcessor) broadcast(ev *detectorModels.Event) {
	if p.hub == nil {
		return
	}
	p.hub.Broadcast(websocketModels.MessageTypeKill, ev)
	p.hub.Broadcast(websocketModels.MessageTypeActivityUpdate, p.engine.Snapshot())
}
