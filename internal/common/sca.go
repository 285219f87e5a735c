package common

import (
	"github.com/wso2/open-banking-berlin/internal/system/config"
)

// ScaSelection is the outcome of the SCA approach and method decision for a
// new authorization.
type ScaSelection struct {
	// Approach is the decided approach. Only meaningful when ApproachFinal
	// is true.
	Approach ScaApproach
	// ApproachFinal is false when the decision must be deferred until the
	// PSU picks a method.
	ApproachFinal bool
	// Methods are the authentication methods to offer the PSU.
	Methods []config.ScaMethod
}

// SelectScaApproachAndMethods decides the SCA approach and the methods to
// offer, from the TPP's redirect preference and the configured method set.
//
// An explicit TPP-Redirect-Preferred header always fixes the approach. With
// no preference expressed, a single configured method or a configured default
// method fixes both the approach and the method; otherwise the approach stays
// open and every configured method is offered.
func SelectScaApproachAndMethods(tppRedirectPreferred *bool, scaRequired bool,
	scaCfg *config.ScaConfig) ScaSelection {

	if tppRedirectPreferred != nil {
		approach := ScaApproachDecoupled
		if *tppRedirectPreferred {
			approach = ScaApproachRedirect
		}
		selection := ScaSelection{Approach: approach, ApproachFinal: true}
		if scaRequired {
			selection.Methods = scaCfg.MethodsForApproach(string(approach))
		}
		return selection
	}

	if !scaRequired {
		return ScaSelection{Approach: defaultApproach(scaCfg), ApproachFinal: true}
	}

	if len(scaCfg.Methods) == 1 {
		only := scaCfg.Methods[0]
		return ScaSelection{
			Approach:      ScaApproach(only.MappedApproach),
			ApproachFinal: true,
			Methods:       []config.ScaMethod{only},
		}
	}

	if def, ok := scaCfg.GetDefaultMethod(); ok {
		return ScaSelection{
			Approach:      ScaApproach(def.MappedApproach),
			ApproachFinal: true,
			Methods:       []config.ScaMethod{def},
		}
	}

	return ScaSelection{ApproachFinal: false, Methods: scaCfg.Methods}
}

func defaultApproach(scaCfg *config.ScaConfig) ScaApproach {
	if def, ok := scaCfg.GetDefaultMethod(); ok {
		return ScaApproach(def.MappedApproach)
	}
	if len(scaCfg.SupportedApproaches) > 0 {
		return ScaApproach(scaCfg.SupportedApproaches[0])
	}
	return ScaApproachRedirect
}
