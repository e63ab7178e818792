// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ses

import (
	"fmt"
	"sort"
)

// AnyElementType marks an acronym that applies to every element type.
const AnyElementType = -1

// Acronym names a bit-field of a status, control, threshold or AES descriptor.
type Acronym struct {
	Name        string
	Page        PageCode
	ElementType int // an ElementType, or AnyElementType
	StartByte   int
	StartBit    int
	NumBits     int
	Info        string
}

func (a Acronym) appliesTo(t ElementType) bool {
	return a.ElementType == AnyElementType || ElementType(a.ElementType) == t
}

func esField(name string, t int, startByte, startBit, numBits int, info string) Acronym {
	return Acronym{name, PageEnclosureStatus, t, startByte, startBit, numBits, info}
}

func thField(name string, startByte int, info string) Acronym {
	return Acronym{name, PageThresholdIn, AnyElementType, startByte, 7, 8, info}
}

func aesField(name string, t int, startByte, startBit, numBits int, info string) Acronym {
	return Acronym{name, PageAdditionalStatus, t, startByte, startBit, numBits, info}
}

// Lookups take the first entry whose name matches and which applies to the element type, so
// type specific entries precede the AnyElementType entry of the same name.
var acronyms = buildAcronyms()

func buildAcronyms() []Acronym {
	const (
		dev = int(ElementDeviceSlot)
		arr = int(ElementArrayDeviceSlot)
		ps  = int(ElementPowerSupply)
		coo = int(ElementCooling)
		ts  = int(ElementTemperatureSensor)
		dor = int(ElementDoor)
		aa  = int(ElementAudibleAlarm)
		esc = int(ElementESCE)
		sce = int(ElementSCCE)
		nc  = int(ElementNonvolatileCache)
		ups = int(ElementUPS)
		enc = int(ElementEnclosure)
		sp  = int(ElementSCSIPortTransceiver)
		lan = int(ElementLanguage)
		vs  = int(ElementVoltageSensor)
		cs  = int(ElementCurrentSensor)
		stp = int(ElementSCSITargetPort)
		sip = int(ElementSCSIInitiatorPort)
		ss  = int(ElementSimpleSubenclosure)
		sse = int(ElementSASExpander)
		ssc = int(ElementSASConnector)
		all = AnyElementType
	)

	return []Acronym{
		// Enclosure Status / Control.
		esField("active", dev, 2, 7, 1, "turn on activity LED (control)"),
		esField("active", arr, 2, 7, 1, "turn on activity LED (control)"),
		esField("bypa", dev, 3, 3, 1, "bypass port A"),
		esField("bypa", arr, 3, 3, 1, "bypass port A"),
		esField("bypb", dev, 3, 2, 1, "bypass port B"),
		esField("bypb", arr, 3, 2, 1, "bypass port B"),
		esField("dev_bypa", dev, 3, 1, 1, "device bypassed port A"),
		esField("dev_bypa", arr, 3, 1, 1, "device bypassed port A"),
		esField("dev_bypb", dev, 3, 0, 1, "device bypassed port B"),
		esField("dev_bypb", arr, 3, 0, 1, "device bypassed port B"),
		esField("devoff", dev, 3, 4, 1, "device off"),
		esField("devoff", arr, 3, 4, 1, "device off"),
		esField("dnr", dev, 2, 6, 1, "do not remove"),
		esField("dnr", arr, 2, 6, 1, "do not remove"),
		esField("do_not_remove", dev, 2, 6, 1, ""),
		esField("do_not_remove", arr, 2, 6, 1, ""),
		esField("fault", dev, 3, 5, 1, "fault requested"),
		esField("fault", arr, 3, 5, 1, "fault requested"),
		esField("fault_sensed", dev, 3, 6, 1, ""),
		esField("fault_sensed", arr, 3, 6, 1, ""),
		esField("ident", dev, 2, 1, 1, "flash LED"),
		esField("ident", arr, 2, 1, 1, "flash LED"),
		esField("locate", dev, 2, 1, 1, "flash LED"),
		esField("locate", arr, 2, 1, 1, "flash LED"),
		esField("insert", dev, 2, 3, 1, "ready to insert"),
		esField("insert", arr, 2, 3, 1, "ready to insert"),
		esField("missing", dev, 2, 4, 1, "request missing (control)"),
		esField("missing", arr, 2, 4, 1, "request missing (control)"),
		esField("remove", dev, 2, 2, 1, "ready to remove"),
		esField("remove", arr, 2, 2, 1, "ready to remove"),
		esField("report", dev, 2, 0, 1, ""),
		esField("report", arr, 2, 0, 1, ""),
		esField("slot_addr", dev, 1, 7, 8, "slot address"),
		esField("ok", arr, 1, 7, 1, ""),
		esField("rsvddevice", arr, 1, 6, 1, "reserved device"),
		esField("hot_spare", arr, 1, 5, 1, ""),
		esField("conscheck", arr, 1, 4, 1, "consistency check"),
		esField("incritarray", arr, 1, 3, 1, "in critical array"),
		esField("infailedarray", arr, 1, 2, 1, "in failed array"),
		esField("rebuildremap", arr, 1, 1, 1, "rebuild/remap"),
		esField("rrabort", arr, 1, 0, 1, "rebuild/remap abort"),

		esField("ident", ps, 1, 7, 1, ""),
		esField("dc_over", ps, 2, 3, 1, "DC overvoltage"),
		esField("dc_under", ps, 2, 2, 1, "DC undervoltage"),
		esField("dc_overc", ps, 2, 1, 1, "DC overcurrent"),
		esField("hot_swap", ps, 3, 7, 1, ""),
		esField("fail", ps, 3, 6, 1, ""),
		esField("rqst_on", ps, 3, 5, 1, "requested on"),
		esField("off", ps, 3, 4, 1, ""),
		esField("overtmp_fail", ps, 3, 3, 1, "over temperature failure"),
		esField("temp_warn", ps, 3, 2, 1, "over temperature warning"),
		esField("ac_fail", ps, 3, 1, 1, ""),
		esField("dc_fail", ps, 3, 0, 1, ""),

		esField("speed_act", coo, 1, 2, 11, "actual fan speed (in units of 10 rpm)"),
		esField("hot_swap", coo, 3, 7, 1, ""),
		esField("fail", coo, 3, 6, 1, ""),
		esField("rqst_on", coo, 3, 5, 1, "requested on"),
		esField("off", coo, 3, 4, 1, ""),
		esField("speed_code", coo, 3, 2, 3, "actual or requested speed code"),

		esField("temp", ts, 2, 7, 8, "current temperature (degrees C + 20)"),
		esField("ot_fail", ts, 3, 3, 1, "over temperature failure"),
		esField("ot_warn", ts, 3, 2, 1, "over temperature warning"),
		esField("ut_fail", ts, 3, 1, 1, "under temperature failure"),
		esField("ut_warn", ts, 3, 0, 1, "under temperature warning"),

		esField("open", dor, 3, 1, 1, ""),
		esField("unlock", dor, 3, 0, 1, ""),

		esField("rqst_mute", aa, 3, 7, 1, "request mute"),
		esField("mute", aa, 3, 6, 1, "set mute (control)"),
		esField("muted", aa, 3, 6, 1, ""),
		esField("remind", aa, 3, 4, 1, ""),
		esField("urgency", aa, 3, 3, 4, "tone urgency indicators"),

		esField("hot_swap", esc, 3, 7, 1, ""),
		esField("report", esc, 2, 0, 1, ""),
		esField("report", sce, 2, 0, 1, ""),

		esField("size_mult", nc, 1, 1, 2, "size multiplier"),
		esField("size", nc, 2, 7, 16, "cache size"),

		esField("batt_status", ups, 1, 7, 8, "battery status (minutes remaining)"),
		esField("ac_lo", ups, 2, 7, 1, ""),
		esField("ac_hi", ups, 2, 6, 1, ""),
		esField("ac_qual", ups, 2, 5, 1, ""),
		esField("ac_fail", ups, 2, 4, 1, ""),
		esField("dc_fail", ups, 2, 3, 1, ""),
		esField("ups_fail", ups, 2, 2, 1, ""),
		esField("warn", ups, 2, 1, 1, ""),
		esField("intf_fail", ups, 2, 0, 1, "interface failure"),
		esField("ident", ups, 3, 7, 1, ""),
		esField("fail", ups, 3, 6, 1, ""),
		esField("batt_fail", ups, 3, 1, 1, ""),
		esField("bpf", ups, 3, 0, 1, "battery predicted failure"),

		esField("time_until_pc", enc, 2, 7, 6, "time until power cycle (minutes)"),
		esField("enc_fail", enc, 2, 1, 1, "failure indication"),
		esField("enc_warn", enc, 2, 0, 1, "warning indication"),
		esField("pc_duration", enc, 3, 7, 6, "power off duration (minutes)"),
		esField("enc_rqst_fail", enc, 3, 1, 1, "request failure"),
		esField("enc_rqst_warn", enc, 3, 0, 1, "request warning"),

		esField("report", sp, 2, 0, 1, ""),
		esField("disabled", sp, 3, 4, 1, ""),
		esField("lol", sp, 3, 1, 1, "loss of link"),
		esField("xmit_fail", sp, 3, 0, 1, "transmitter failure"),

		esField("lang", lan, 2, 7, 16, "language code"),

		esField("warn_over", vs, 1, 3, 1, "over voltage warning"),
		esField("warn_under", vs, 1, 2, 1, "under voltage warning"),
		esField("crit_over", vs, 1, 1, 1, "critical over voltage"),
		esField("crit_under", vs, 1, 0, 1, "critical under voltage"),
		esField("voltage", vs, 2, 7, 16, "voltage in centivolts"),
		esField("warn_over", cs, 1, 3, 1, "over current warning"),
		esField("crit_over", cs, 1, 1, 1, "critical over current"),
		esField("current", cs, 2, 7, 16, "current in centiamps"),

		esField("report", stp, 2, 0, 1, ""),
		esField("enable", stp, 3, 0, 1, ""),
		esField("report", sip, 2, 0, 1, ""),
		esField("enable", sip, 3, 0, 1, ""),

		esField("short_stat", ss, 3, 7, 8, "short enclosure status"),

		esField("ctr_type", ssc, 1, 6, 7, "connector type"),
		esField("ctr_link", ssc, 2, 7, 8, "connector physical link"),
		esField("fail", ssc, 3, 6, 1, ""),

		esField("select", all, 0, 7, 1, "select element (control)"),
		esField("prdfail", all, 0, 6, 1, "predicted failure"),
		esField("disable", all, 0, 5, 1, "disable element (control)"),
		esField("disabled", all, 0, 5, 1, ""),
		esField("swap", all, 0, 4, 1, "element swapped / reset swap (control)"),
		esField("status", all, 0, 3, 4, "element status code"),
		esField("ident", all, 1, 7, 1, ""),
		esField("locate", all, 1, 7, 1, ""),
		esField("fail", all, 1, 6, 1, ""),

		// Threshold In / Out.
		thField("high_crit", 0, "high critical threshold"),
		thField("high_warn", 1, "high warning threshold"),
		thField("low_warn", 2, "low warning threshold"),
		thField("low_crit", 3, "low critical threshold"),

		// Additional Element Status, SAS layout with EIP set.
		aesField("invalid", all, 0, 7, 1, ""),
		aesField("eip", all, 0, 4, 1, "element index present"),
		aesField("proto", all, 0, 3, 4, "protocol identifier"),
		aesField("eiioe", all, 2, 1, 2, "element index includes overall elements"),
		aesField("ei", all, 3, 7, 8, "element index"),
		aesField("num_phys", all, 4, 7, 8, "number of phys"),
		aesField("sas_desc_type", all, 5, 7, 2, "SAS descriptor type"),
		aesField("dsn", dev, 7, 7, 8, "device slot number"),
		aesField("dsn", arr, 7, 7, 8, "device slot number"),
		aesField("dev_type", dev, 8, 6, 3, "attached device type"),
		aesField("dev_type", arr, 8, 6, 3, "attached device type"),
		aesField("ssp_init", dev, 10, 3, 1, ""),
		aesField("ssp_init", arr, 10, 3, 1, ""),
		aesField("stp_init", dev, 10, 2, 1, ""),
		aesField("stp_init", arr, 10, 2, 1, ""),
		aesField("smp_init", dev, 10, 1, 1, ""),
		aesField("smp_init", arr, 10, 1, 1, ""),
		aesField("sata_port_sel", dev, 11, 7, 1, "SATA port selector"),
		aesField("sata_port_sel", arr, 11, 7, 1, "SATA port selector"),
		aesField("ssp_targ", dev, 11, 3, 1, ""),
		aesField("ssp_targ", arr, 11, 3, 1, ""),
		aesField("stp_targ", dev, 11, 2, 1, ""),
		aesField("stp_targ", arr, 11, 2, 1, ""),
		aesField("smp_targ", dev, 11, 1, 1, ""),
		aesField("smp_targ", arr, 11, 1, 1, ""),
		aesField("sata_dev", dev, 11, 0, 1, "SATA device"),
		aesField("sata_dev", arr, 11, 0, 1, "SATA device"),
		aesField("at_sas_addr", dev, 12, 7, 64, "attached SAS address"),
		aesField("at_sas_addr", arr, 12, 7, 64, "attached SAS address"),
		aesField("sas_addr", dev, 20, 7, 64, "SAS address of first phy"),
		aesField("sas_addr", arr, 20, 7, 64, "SAS address of first phy"),
		aesField("phy_id", dev, 28, 7, 8, "phy identifier of first phy"),
		aesField("phy_id", arr, 28, 7, 8, "phy identifier of first phy"),
		aesField("sas_addr", sse, 8, 7, 64, "expander SAS address"),
	}
}

// LookupAcronym returns the first acronym named name, on page (zero for any page), applying to
// element type t.
func LookupAcronym(name string, page PageCode, t ElementType) (Acronym, error) {
	seen := false

	for _, a := range acronyms {
		if a.Name != name || (page != 0 && a.Page != page) {
			continue
		}

		seen = true
		if a.appliesTo(t) {
			return a, nil
		}
	}

	if seen {
		return Acronym{}, fmt.Errorf("%q for %s: %w", name, t, ErrAcronymWrongElementType)
	}

	return Acronym{}, fmt.Errorf("%q: %w", name, ErrAcronymNotFound)
}

// Acronyms returns the acronym table of one page, sorted by name.
func Acronyms(page PageCode) []Acronym {
	var out []Acronym
	for _, a := range acronyms {
		if a.Page == page {
			out = append(out, a)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}
