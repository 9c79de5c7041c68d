// Package prompt turns a session's context into the prompts sent to the chat model.
package prompt

import (
	"context"
	"fmt"
	"strings"

	"echo/core"
	"echo/providers"
	"echo/session"
	"echo/templates"
)

// Assembler builds prompts from the active templates and session state.
type Assembler struct {
	templates templates.Store
	locale    Locale
}

func NewAssembler(store templates.Store, locale Locale) *Assembler {
	return &Assembler{templates: store, locale: locale}
}

func (a *Assembler) Locale() Locale {
	return a.locale
}

// GreetingInstruction is the user turn that asks the model to open the conversation.
func (a *Assembler) GreetingInstruction() string {
	return a.locale.GreetingInstruction
}

func (a *Assembler) activeTemplate(ctx context.Context, typ templates.Type) (*templates.Template, error) {
	t, err := a.templates.FindActive(ctx, typ)
	if err != nil {
		return nil, fmt.Errorf("prompt: load %s template: %w", typ, err)
	}
	if t == nil {
		return nil, core.ConfigurationMissingError(string(typ))
	}
	return t, nil
}

// BuildSystemPrompt compiles the active SYSTEM template with the user's profile,
// weather and health figures. Missing values compile to "".
func (a *Assembler) BuildSystemPrompt(ctx context.Context, sess *session.Session) (string, error) {
	tpl, err := a.activeTemplate(ctx, templates.TypeSystem)
	if err != nil {
		return "", err
	}
	return tpl.Compile(a.systemVariables(sess.Preferences, sess.Health, sess.Weather)), nil
}

func (a *Assembler) systemVariables(prefs *providers.Preferences, health *providers.HealthSnapshot, weather *providers.WeatherSnapshot) map[string]any {
	vars := map[string]any{
		"userName":         a.userName(prefs),
		"userAge":          "",
		"userBirthday":     "",
		"hobby":            "",
		"job":              "",
		"family":           "",
		"preferredTopics":  "",
		"weather":          "",
		"temperature":      "",
		"steps":            "",
		"exerciseDistance": "",
		"exerciseActivity": "",
		"sleepInfo":        "",
	}
	if prefs != nil {
		if prefs.Age != nil {
			vars["userAge"] = *prefs.Age
		}
		if prefs.Birthday != nil {
			vars["userBirthday"] = prefs.Birthday.Format("2006-01-02")
		}
		vars["hobby"] = prefs.Hobbies
		vars["job"] = prefs.Occupation
		vars["family"] = prefs.FamilyInfo
		vars["preferredTopics"] = prefs.PreferredTopics
	}
	if weather != nil {
		vars["weather"] = weather.Description
		if weather.Temperature != nil {
			vars["temperature"] = fmt.Sprintf("%d°C", *weather.Temperature)
		}
	}
	if health != nil {
		if health.Steps != nil {
			vars["steps"] = fmt.Sprintf(a.locale.StepsUnit, a.locale.groupDigits(*health.Steps))
		}
		if health.ExerciseDistanceKm != nil {
			vars["exerciseDistance"] = oneDecimal(*health.ExerciseDistanceKm) + "km"
		}
		vars["exerciseActivity"] = health.ExerciseActivity
		if health.SleepDurationMinutes != nil {
			vars["sleepInfo"] = a.sleepInfo(*health.SleepDurationMinutes)
		}
	}
	return vars
}

func (a *Assembler) userName(prefs *providers.Preferences) string {
	if prefs == nil || prefs.Name == "" {
		return a.locale.DefaultUserName
	}
	return prefs.Name
}

// sleepInfo renders minutes as "7시간" or "7시간 30분".
func (a *Assembler) sleepInfo(minutes int) string {
	s := fmt.Sprintf(a.locale.SleepHours, minutes/60)
	if m := minutes % 60; m != 0 {
		s += fmt.Sprintf(a.locale.SleepMinutes, m)
	}
	return s
}

// BuildTodayContext describes today's steps, sleep and weather in one or two
// sentences. Either half is omitted when its data is missing.
func (a *Assembler) BuildTodayContext(sess *session.Session) string {
	return a.todayContext(sess.Preferences, sess.Health, sess.Weather)
}

func (a *Assembler) todayContext(prefs *providers.Preferences, health *providers.HealthSnapshot, weather *providers.WeatherSnapshot) string {
	l := a.locale
	var sb strings.Builder

	if health != nil && (health.Steps != nil || health.SleepDurationMinutes != nil) {
		fmt.Fprintf(&sb, l.HealthLead, a.userName(prefs))
		if health.Steps != nil {
			fmt.Fprintf(&sb, l.WalkedSteps, l.groupDigits(*health.Steps))
		}
		if health.SleepDurationMinutes != nil {
			if health.Steps != nil {
				sb.WriteString(l.HealthJoin)
			}
			fmt.Fprintf(&sb, l.SleptHours, oneDecimal(float64(*health.SleepDurationMinutes)/60))
		} else {
			sb.WriteString(l.StepsOnlyEnd)
		}
	}

	if weather != nil && weather.Description != "" {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		if weather.Temperature != nil {
			fmt.Fprintf(&sb, l.WeatherWithTemp, weather.Description, *weather.Temperature)
		} else {
			fmt.Fprintf(&sb, l.WeatherOnly, weather.Description)
		}
	}
	return sb.String()
}

// BuildHistory renders the session's turns as numbered blocks separated by a blank line.
func (a *Assembler) BuildHistory(sess *session.Session) string {
	return a.history(sess.History())
}

func (a *Assembler) history(turns []session.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	blocks := make([]string, len(turns))
	for i, turn := range turns {
		var b strings.Builder
		fmt.Fprintf(&b, a.locale.TurnHeader, i+1)
		b.WriteByte('\n')
		if turn.UserMessage != nil {
			b.WriteString(a.locale.UserLinePrefix)
			b.WriteString(*turn.UserMessage)
			b.WriteByte('\n')
		}
		b.WriteString(a.locale.AILinePrefix)
		b.WriteString(turn.AIResponse)
		blocks[i] = b.String()
	}
	return strings.Join(blocks, "\n\n")
}

// BuildConversationPrompt compiles the active CONVERSATION template around the
// system prompt, today's context, the history so far and the new user message.
func (a *Assembler) BuildConversationPrompt(ctx context.Context, sess *session.Session, userMessage string) (string, error) {
	tpl, err := a.activeTemplate(ctx, templates.TypeConversation)
	if err != nil {
		return "", err
	}
	systemPrompt, err := a.BuildSystemPrompt(ctx, sess)
	if err != nil {
		return "", err
	}
	return tpl.Compile(map[string]any{
		"systemPrompt":        systemPrompt,
		"todayContext":        a.BuildTodayContext(sess),
		"conversationHistory": a.BuildHistory(sess),
		"userMessage":         userMessage,
	}), nil
}

// BuildDiaryPrompt compiles the active DIARY template for a finished conversation.
func (a *Assembler) BuildDiaryPrompt(ctx context.Context, snap session.Snapshot) (string, error) {
	tpl, err := a.activeTemplate(ctx, templates.TypeDiary)
	if err != nil {
		return "", err
	}
	return tpl.Compile(map[string]any{
		"userName":            a.userName(snap.Preferences),
		"date":                snap.Date.Format(a.locale.DateLayout),
		"todayContext":        a.todayContext(snap.Preferences, snap.Health, snap.Weather),
		"conversationHistory": a.history(snap.History),
	}), nil
}
