// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях бота.
// Эти ошибки позволяют обработчикам различать типы проблем
// и отправлять пользователю понятные сообщения.
package common

import "errors"

// Ошибки очков
var (
	// ErrMemberNotFound — участник не найден в базе
	ErrMemberNotFound = errors.New("участник не найден")
	// ErrMemberExists — запись участника уже создана (гонка параллельных событий)
	ErrMemberExists = errors.New("участник уже зарегистрирован")
	// ErrInvalidAmount — некорректное количество очков (ноль или отрицательное)
	ErrInvalidAmount = errors.New("количество очков должно быть положительным")
	// ErrExcludedAccount — активность служебного псевдоаккаунта не учитывается
	ErrExcludedAccount = errors.New("служебный аккаунт не учитывается")
	// ErrStaleRecord — запись изменилась с момента чтения, операцию надо повторить позже
	ErrStaleRecord = errors.New("запись изменилась с момента чтения")
)

// Ошибки команд
var (
	// ErrNotAdmin — пользователь не является администратором группы
	ErrNotAdmin = errors.New("команда доступна только администраторам группы")
	// ErrReplyRequired — команда работает только в ответ на сообщение
	ErrReplyRequired = errors.New("ответьте на сообщение участника")
	// ErrPrivateOnly — команда работает только в личке
	ErrPrivateOnly = errors.New("команда доступна только в личных сообщениях")
)
