package dataset

import (
	"encoding/json"
	"fmt"

	"github.com/signalsfoundry/heliosphere-sim/model"
	"github.com/signalsfoundry/heliosphere-sim/units"
)

// Resource paths relative to the dataset root.
const (
	MetaPath          = "meta.json"
	DefaultEpochsPath = "time/epochs.json"
	epochPathFormat   = "heliosphere/epoch_%06d.json"
)

// EpochPath returns the zero-padded per-epoch resource path for index i.
func EpochPath(i int) string { return fmt.Sprintf(epochPathFormat, i) }

// Meta is the dataset metadata header.
type Meta struct {
	Version  string   `json:"version"`
	Created  string   `json:"created,omitempty"`
	Units    Units    `json:"units"`
	TimeAxis TimeAxis `json:"time_axis"`
}

// Units names the units the dataset's numbers are expressed in.
type Units struct {
	Distance string `json:"distance"`
	Velocity string `json:"velocity"`
	Time     string `json:"time"`
}

// TimeAxis describes the epoch time array.
type TimeAxis struct {
	Count     int             `json:"n_epochs"`
	Min       units.Megayears `json:"t_min"`
	Max       units.Megayears `json:"t_max"`
	EpochFile string          `json:"epoch_file"`
}

// epochJSON is the per-epoch record as stored on disk.
type epochJSON struct {
	HeliopauseNose float64    `json:"R_HP_nose"`
	ShockRatio     float64    `json:"R_TS_over_HP"`
	Inflow         [3]float64 `json:"nose_vec"`
	ISMDensity     float64    `json:"ISM_rho"`
	ISMTemperature float64    `json:"ISM_T"`
	ISMField       float64    `json:"ISM_B"`
	WindMassLoss   float64    `json:"SW_Mdot"`
	WindSpeed      float64    `json:"SW_v"`
	Morphology     string     `json:"morphology"`
	Shape          []float64  `json:"shape_params"`
}

// decodeMeta parses and sanity-checks a metadata header.
func decodeMeta(b []byte) (Meta, error) {
	var m Meta
	if err := json.Unmarshal(b, &m); err != nil {
		return Meta{}, fmt.Errorf("decode metadata: %w", err)
	}
	if m.TimeAxis.EpochFile == "" {
		m.TimeAxis.EpochFile = DefaultEpochsPath
	}
	return m, nil
}

// decodeEpochs parses the epoch time array and checks that it is non-empty
// and strictly ascending.
func decodeEpochs(b []byte) ([]units.Megayears, error) {
	var times []units.Megayears
	if err := json.Unmarshal(b, &times); err != nil {
		return nil, fmt.Errorf("decode epoch array: %w", err)
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("epoch array is empty")
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return nil, fmt.Errorf("epoch array not ascending at index %d", i)
		}
	}
	return times, nil
}

// decodeEpoch parses one per-epoch record. nose_vec holds the ISM inflow
// direction, pointing toward the Sun, so the upwind nose is its negation.
// It is renormalised and reported through renormalized when its length was
// off by more than units.UnitTolerance.
func decodeEpoch(b []byte) (p model.HeliosphereParameters, renormalized bool, err error) {
	var rec epochJSON
	if err := json.Unmarshal(b, &rec); err != nil {
		return p, false, fmt.Errorf("decode epoch: %w", err)
	}
	morph, err := model.ParseMorphology(rec.Morphology)
	if err != nil {
		return p, false, err
	}
	inflow, err := units.Normalize(rec.Inflow[0], rec.Inflow[1], rec.Inflow[2])
	if err != nil {
		return p, false, fmt.Errorf("nose_vec: %w", err)
	}
	_, strictErr := units.UnitDirection(rec.Inflow[0], rec.Inflow[1], rec.Inflow[2])

	shock := units.Ratio(rec.ShockRatio)
	if shock > 1 {
		shock = 1
	}
	return model.HeliosphereParameters{
		HeliopauseNose: units.AU(rec.HeliopauseNose),
		ShockRatio:     shock,
		Inflow:         inflow,
		ISMDensity:     units.PerCubicCm(rec.ISMDensity),
		ISMTemperature: units.Kelvin(rec.ISMTemperature),
		ISMField:       units.Nanotesla(rec.ISMField),
		WindMassLoss:   units.Ratio(rec.WindMassLoss),
		WindSpeed:      units.KmPerSec(rec.WindSpeed),
		Morphology:     morph,
		Shape:          append([]float64(nil), rec.Shape...),
	}, strictErr != nil, nil
}

// EncodeMeta serialises a metadata header.
func EncodeMeta(m Meta) ([]byte, error) { return json.MarshalIndent(m, "", "  ") }

// EncodeEpochs serialises an epoch time array.
func EncodeEpochs(times []units.Megayears) ([]byte, error) { return json.Marshal(times) }

// EncodeEpoch serialises one parameter set in the on-disk record layout.
func EncodeEpoch(p model.HeliosphereParameters) ([]byte, error) {
	ix, iy, iz := p.Inflow.Components()
	return json.MarshalIndent(epochJSON{
		HeliopauseNose: float64(p.HeliopauseNose),
		ShockRatio:     float64(p.ShockRatio),
		Inflow:         [3]float64{ix, iy, iz},
		ISMDensity:     float64(p.ISMDensity),
		ISMTemperature: float64(p.ISMTemperature),
		ISMField:       float64(p.ISMField),
		WindMassLoss:   float64(p.WindMassLoss),
		WindSpeed:      float64(p.WindSpeed),
		Morphology:     p.Morphology.String(),
		Shape:          p.Shape,
	}, "", "  ")
}
