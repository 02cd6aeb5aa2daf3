package report

import "github.com/warp/fleetlog/fleet"

// labels holds every user-visible token of one language.
type labels struct {
	dateLayout string
	timeLayout string

	yes, no, none string
	types         map[fleet.EntryType]string

	mileageHeader   []string
	equipmentHeader []string
	ridersHeader    []string
}

var locales = map[fleet.Language]labels{
	fleet.LangFR: {
		dateLayout: "02/01/2006",
		timeLayout: "15:04:05",
		yes:        "Oui",
		no:         "Non",
		none:       "Aucun",
		types: map[fleet.EntryType]string{
			fleet.EntryOpening: "Ouverture",
			fleet.EntryClosing: "Fermeture",
			fleet.EntryFuel:    "Carburant",
		},
		mileageHeader: []string{
			"Date", "Heure", "Rider", "Matricule", "Type", "Shift", "Kilométrage", "Montant (CDF)",
		},
		equipmentHeader: []string{
			"Date", "Rider", "Matricule moto", "ID téléphone", "Casque", "Document moto",
			"Argent d'échange", "Échange USD", "Échange CDF",
		},
		ridersHeader: []string{
			"Nom", "Email", "Matricule", "Entrées", "Dernière entrée",
		},
	},
	fleet.LangEN: {
		dateLayout: "01/02/2006",
		timeLayout: "15:04:05",
		yes:        "Yes",
		no:         "No",
		none:       "None",
		types: map[fleet.EntryType]string{
			fleet.EntryOpening: "Opening",
			fleet.EntryClosing: "Closing",
			fleet.EntryFuel:    "Fuel",
		},
		mileageHeader: []string{
			"Date", "Time", "Rider", "Matricule", "Type", "Shift", "Kilometrage", "Amount (CDF)",
		},
		equipmentHeader: []string{
			"Date", "Rider", "Motorcycle Matricule", "Phone ID", "Helmet", "Document",
			"Exchange Money", "Exchange USD", "Exchange CDF",
		},
		ridersHeader: []string{
			"Name", "Email", "Matricule", "Entries", "Last Entry",
		},
	},
}

// localeFor falls back to French, the application's default language.
func localeFor(lang fleet.Language) labels {
	if l, ok := locales[lang]; ok {
		return l
	}
	return locales[fleet.LangFR]
}

func (l labels) bool(b bool) string {
	if b {
		return l.yes
	}
	return l.no
}

func (l labels) entryType(t fleet.EntryType) string {
	if s, ok := l.types[t]; ok {
		return s
	}
	return string(t)
}
