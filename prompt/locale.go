package prompt

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Locale holds every phrase the assembler renders into prompts.
type Locale struct {
	Tag language.Tag

	DefaultUserName     string
	GreetingInstruction string

	StepsUnit    string // "%s보": grouped step count
	SleepHours   string // "%d시간"
	SleepMinutes string // " %d분"

	HealthLead   string // "오늘 %s님은 ": user name
	WalkedSteps  string // "%s보 걸으셨고": grouped step count
	HealthJoin   string
	SleptHours   string // "%s시간 주무셨습니다.": hours with one decimal
	StepsOnlyEnd string

	WeatherWithTemp string // "오늘 날씨는 %s이고 기온은 %d도입니다."
	WeatherOnly     string // "오늘 날씨는 %s입니다."

	TurnHeader     string // "[턴 %d]"
	UserLinePrefix string
	AILinePrefix   string

	DateLayout string
}

var Korean = Locale{
	Tag:                 language.Korean,
	DefaultUserName:     "사용자",
	GreetingInstruction: "대화를 시작해주세요.",
	StepsUnit:           "%s보",
	SleepHours:          "%d시간",
	SleepMinutes:        " %d분",
	HealthLead:          "오늘 %s님은 ",
	WalkedSteps:         "%s보 걸으셨고",
	HealthJoin:          ", ",
	SleptHours:          "%s시간 주무셨습니다.",
	StepsOnlyEnd:        ".",
	WeatherWithTemp:     "오늘 날씨는 %s이고 기온은 %d도입니다.",
	WeatherOnly:         "오늘 날씨는 %s입니다.",
	TurnHeader:          "[턴 %d]",
	UserLinePrefix:      "사용자: ",
	AILinePrefix:        "AI: ",
	DateLayout:          "2006년 1월 2일",
}

var English = Locale{
	Tag:                 language.English,
	DefaultUserName:     "user",
	GreetingInstruction: "Please start the conversation.",
	StepsUnit:           "%s steps",
	SleepHours:          "%d hours",
	SleepMinutes:        " %d minutes",
	HealthLead:          "Today %s ",
	WalkedSteps:         "walked %s steps",
	HealthJoin:          ", ",
	SleptHours:          "slept %s hours.",
	StepsOnlyEnd:        ".",
	WeatherWithTemp:     "Today's weather is %s with a temperature of %d degrees.",
	WeatherOnly:         "Today's weather is %s.",
	TurnHeader:          "[Turn %d]",
	UserLinePrefix:      "User: ",
	AILinePrefix:        "AI: ",
	DateLayout:          "January 2, 2006",
}

// LocaleFor maps a config value such as "ko" or "en-US" to a Locale. Korean is the default.
func LocaleFor(name string) (Locale, error) {
	if name == "" {
		return Korean, nil
	}
	tag, err := language.Parse(name)
	if err != nil {
		return Locale{}, fmt.Errorf("prompt: locale %q: %w", name, err)
	}
	base, _ := tag.Base()
	switch base.String() {
	case "ko":
		return Korean, nil
	case "en":
		return English, nil
	default:
		return Locale{}, fmt.Errorf("prompt: unsupported locale %q", name)
	}
}

// groupDigits renders n with the locale's thousands separator.
func (l Locale) groupDigits(n int) string {
	return message.NewPrinter(l.Tag).Sprintf("%d", n)
}
