package conversation

import (
	"deadlinebot/internal/action"
	kit "deadlinebot/internal/transport"
)

// Persistent reply-keyboard labels. Pressing one sends the label as text.
const (
	BtnAdd      = "Добавить дедлайн"
	BtnList     = "Мои дедлайны"
	BtnSettings = "Время напоминания"
	BtnHelp     = "Помощь"
)

const (
	textMenu      = "Deadline Tracker Bot\n\nВыбери действие:"
	textNotFound  = "Дедлайн не найден."
	textFailure   = "Что-то пошло не так, попробуй ещё раз."
	textEmptyList = "У тебя пока нет дедлайнов."
	textListHead  = "Твои дедлайны:\n\n"

	textAskName   = "Введи название дедлайна:"
	textAskDate   = "Выбери дату дедлайна или введи вручную (ДД.ММ.ГГГГ):"
	textAskRepeat = "Повторяющийся дедлайн?"
	textBadDate   = "Неверный формат даты!\nФормат: ДД.ММ.ГГГГ\nПример: 20.01.2026\n\nПопробуй ещё раз:"

	textAskNewName = "Введи новое название:"
	textBadTime    = "Неверный формат!\nВведи время как ЧЧ:ММ (например: 09:00)\n\nПопробуй ещё раз:"

	textAddCancelled  = "Добавление дедлайна отменено."
	textEditCancelled = "Изменение отменено."
	textTimeCancelled = "Настройка времени отменена."
)

const textHelp = "Deadline Tracker Bot — v2.0\n\n" +
	"Бот для отслеживания дедлайнов с напоминаниями.\n\n" +
	"Возможности:\n" +
	"- Добавление дедлайнов с датой через календарь\n" +
	"- Повторяющиеся дедлайны (еженедельно, ежемесячно)\n" +
	"- Редактирование названия и даты\n" +
	"- Ежедневные напоминания о ближайших дедлайнах (7 дней)\n" +
	"- Настройка времени напоминания\n\n" +
	"Кнопки внизу экрана:\n" +
	"- Добавить дедлайн — создать новый дедлайн\n" +
	"- Мои дедлайны — список всех дедлайнов\n" +
	"- Время напоминания — изменить время ежедневного напоминания\n" +
	"- Помощь — эта справка\n\n" +
	"Команды:\n" +
	"/start — главное меню\n" +
	"/add — добавить дедлайн\n" +
	"/list — мои дедлайны\n" +
	"/help — справка\n" +
	"/cancel — отмена текущего действия\n\n" +
	"Формат даты: ДД.ММ.ГГГГ или выбор через календарь."

// Commands is the command menu published to Telegram.
var Commands = []kit.BotCommand{
	{Command: "start", Description: "главное меню"},
	{Command: "add", Description: "добавить дедлайн"},
	{Command: "list", Description: "мои дедлайны"},
	{Command: "help", Description: "справка"},
	{Command: "cancel", Description: "отмена текущего действия"},
}

func btn(text string, a action.Action) kit.Button {
	return kit.Button{Text: text, Data: a.Token()}
}

func inline(rows ...[]kit.Button) *kit.Keyboard {
	return &kit.Keyboard{Inline: rows}
}

func persistentKeyboard() *kit.Keyboard {
	return &kit.Keyboard{Reply: [][]string{{BtnAdd, BtnList}, {BtnSettings, BtnHelp}}}
}

var (
	rowList    = []kit.Button{btn("Мои дедлайны", action.Menu(action.MenuList))}
	rowAdd     = []kit.Button{btn("Добавить дедлайн", action.Menu(action.MenuAdd))}
	rowAddMore = []kit.Button{btn("Добавить ещё", action.Menu(action.MenuAdd))}
	rowMenu    = []kit.Button{btn("В меню", action.Menu(action.MenuStart))}
)

func mainMenu() *kit.Keyboard { return inline(rowAdd, rowList) }

func cancelKeyboard(scope string) *kit.Keyboard {
	return inline([]kit.Button{btn("Отмена", action.CancelAction(scope))})
}

func repeatKeyboard() *kit.Keyboard {
	return inline(
		[]kit.Button{btn("Нет", action.RepeatAction(""))},
		[]kit.Button{btn("Еженедельно", action.RepeatAction("weekly"))},
		[]kit.Button{btn("Ежемесячно", action.RepeatAction("monthly"))},
	)
}
