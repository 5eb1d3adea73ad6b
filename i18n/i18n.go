// Package i18n holds the message catalog for violation codes, notices and labels.
package i18n

import (
	"context"
	"strings"
)

const DefaultLang = "en"

var catalog = map[string]map[string]string{
	"en": {
		"required":         "Required",
		"invalid_email":    "Invalid email address",
		"too_short":        "Too short",
		"invalid_slug":     "Only lowercase letters, numbers and dashes",
		"invalid_choice":   "Invalid choice",
		"invalid_date":     "Invalid date",
		"must_be_positive": "Must be positive",
		"already_taken":    "Already taken",
		"not_found":        "Not found",
		"before_start":     "Must be on or after the start date",
		"too_large":        "File is too large",

		"no_assignable_users": "Nobody to assign yet",

		"user_created":    "User created.",
		"role_updated":    "Role updated.",
		"user_deleted":    "User deleted.",
		"team_created":    "Team created.",
		"team_deleted":    "Team deleted.",
		"member_added":    "Member added.",
		"member_removed":  "Member removed.",
		"project_created": "Project created.",
		"task_created":    "Task created.",
		"task_updated":    "Task updated.",
		"task_deleted":    "Task deleted.",
		"task_completed":  "Task marked as done.",
		"comment_added":   "Comment added.",
		"file_uploaded":   "File uploaded.",
		"report_saved":    "Daily report saved.",
		"leave_requested": "Leave request submitted.",
		"leave_updated":   "Leave request updated.",
		"profile_saved":   "Employee profile saved.",
		"nav_dashboard":   "Dashboard",
		"nav_tasks":       "Tasks",
		"nav_reports":     "Reports",
		"nav_daily":       "Daily report",
		"nav_hr":          "HR",
		"nav_admin":       "Admin",
		"nav_manage":      "Manage",
		"nav_ai":          "AI assistant",
		"nav_logout":      "Log out",
		"today":           "Today",
		"yesterday":       "Yesterday",
	},
	"fr": {
		"required":         "Requis",
		"invalid_email":    "Adresse e-mail invalide",
		"too_short":        "Trop court",
		"invalid_slug":     "Lettres minuscules, chiffres et tirets uniquement",
		"invalid_choice":   "Choix invalide",
		"invalid_date":     "Date invalide",
		"must_be_positive": "Doit être positif",
		"already_taken":    "Déjà utilisé",
		"not_found":        "Introuvable",
		"before_start":     "Doit être postérieure ou égale à la date de début",
		"too_large":        "Fichier trop volumineux",

		"no_assignable_users": "Personne à qui assigner",

		"user_created":    "Utilisateur créé.",
		"role_updated":    "Rôle mis à jour.",
		"user_deleted":    "Utilisateur supprimé.",
		"team_created":    "Équipe créée.",
		"team_deleted":    "Équipe supprimée.",
		"member_added":    "Membre ajouté.",
		"member_removed":  "Membre retiré.",
		"project_created": "Projet créé.",
		"task_created":    "Tâche créée.",
		"task_updated":    "Tâche mise à jour.",
		"task_deleted":    "Tâche supprimée.",
		"task_completed":  "Tâche terminée.",
		"comment_added":   "Commentaire ajouté.",
		"file_uploaded":   "Fichier envoyé.",
		"report_saved":    "Rapport journalier enregistré.",
		"leave_requested": "Demande de congé envoyée.",
		"leave_updated":   "Demande de congé mise à jour.",
		"profile_saved":   "Fiche employé enregistrée.",
		"nav_dashboard":   "Tableau de bord",
		"nav_tasks":       "Tâches",
		"nav_reports":     "Rapports",
		"nav_daily":       "Rapport journalier",
		"nav_hr":          "RH",
		"nav_admin":       "Administration",
		"nav_manage":      "Gestion",
		"nav_ai":          "Assistant IA",
		"nav_logout":      "Déconnexion",
		"today":           "Aujourd'hui",
		"yesterday":       "Hier",
	},
}

// T translates code into lang, falling back to English and then to the code itself.
func T(lang, code string) string {
	if m, ok := catalog[lang]; ok {
		if s, ok := m[code]; ok {
			return s
		}
	}
	if s, ok := catalog[DefaultLang][code]; ok {
		return s
	}
	return code
}

// Supported reports whether lang has a catalog.
func Supported(lang string) bool {
	_, ok := catalog[lang]
	return ok
}

// DetectLanguage picks the first supported language of an Accept-Language header.
func DetectLanguage(acceptLanguage string) string {
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		base := strings.ToLower(strings.SplitN(tag, "-", 2)[0])
		if Supported(base) {
			return base
		}
	}
	return DefaultLang
}

type langKey struct{}

func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, langKey{}, lang)
}

// LangFromContext returns the request language, defaulting to English.
func LangFromContext(ctx context.Context) string {
	if l, ok := ctx.Value(langKey{}).(string); ok && l != "" {
		return l
	}
	return DefaultLang
}
