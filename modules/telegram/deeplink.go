package telegram

import "fmt"

// BotLink returns the t.me deep link that opens the app's bot with the
// given start parameter. The parameter lands in a "/start <param>"
// message when the user taps Start.
func (m *Module) BotLink(appID, startParam string) (string, bool) {
	app, ok := m.config.Apps[appID]
	if !ok || app.BotUsername == "" {
		return "", false
	}
	return fmt.Sprintf("https://t.me/%s?start=%s", app.BotUsername, startParam), true
}

// AppLink returns the t.me deep link that opens the app's Mini App with
// the given start parameter, delivered via initData's start_param.
func (m *Module) AppLink(appID, startParam string) (string, bool) {
	app, ok := m.config.Apps[appID]
	if !ok || app.BotUsername == "" || app.StartAppName == "" {
		return "", false
	}
	return fmt.Sprintf("https://t.me/%s/%s?startapp=%s", app.BotUsername, app.StartAppName, startParam), true
}
