// Package equipment extracts optional module and inverter parameters from
// PVsyst-style PAN/OND text. The extraction is a heuristic key-value scan;
// the model pipeline depends only on the resulting parameter structs and
// treats every field as independently optional.
package equipment

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pvcast/pvcast/internal/models"
)

var numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

func parseKeyVals(text string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		idx := strings.IndexAny(line, "=:")
		if idx <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:idx]))
		val := strings.TrimSpace(line[idx+1:])
		if key != "" && val != "" {
			out[key] = val
		}
	}
	return out
}

func firstNumber(kv map[string]string, keys ...string) *float64 {
	for _, key := range keys {
		raw, ok := kv[key]
		if !ok {
			continue
		}
		match := numberRe.FindString(raw)
		if match == "" {
			continue
		}
		v, err := strconv.ParseFloat(match, 64)
		if err != nil {
			continue
		}
		return &v
	}
	return nil
}

// ParsePAN extracts module parameters from PAN file text. Unrecognized or
// absent keys leave the corresponding field nil.
func ParsePAN(text string) models.ModuleParams {
	kv := parseKeyVals(text)
	p := models.ModuleParams{}

	p.PowerSTCW = firstNumber(kv, "pmpp", "pnom", "p_stc", "pmp_stc")

	if gamma := firstNumber(kv, "mu_pmp", "gamma_pmp", "tempco_pmp", "tpcoeffpmax"); gamma != nil {
		g := *gamma
		// %/°C values convert to a fraction; real coefficients are ~-0.003/°C.
		if g < -0.05 || g > 0.05 {
			g /= 100
		}
		p.GammaPmpPerC = &g
	}

	p.Bifaciality = firstNumber(kv, "bifaciality", "bif_factor")
	return p
}

// ParseOND extracts inverter parameters from OND file text.
func ParseOND(text string) models.InverterParams {
	kv := parseKeyVals(text)
	inv := models.InverterParams{}

	if eff := firstNumber(kv, "eff", "effnom", "eff_nominal", "eta", "efficiency"); eff != nil {
		v := *eff
		if v > 1.5 {
			v /= 100 // expressed as percent
		}
		inv.EffNominal = &v
	}

	if pac := firstNumber(kv, "pac", "pacmax", "p_ac", "pmaxac", "p_ac_nom"); pac != nil {
		v := *pac
		if v > 5000 {
			v /= 1000 // expressed in watts
		}
		inv.PacMaxKW = &v
	}
	return inv
}
