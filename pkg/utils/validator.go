package utils

// validator.go - валидация данных
//
// Назначение:
// Проверка корректности входных данных.
//
// Функции:
// - ValidateSymbol: проверка формата символа (BTCUSDT)
// - ValidateSpread: проверка спреда (> 0)
// - ValidateVolume: проверка объема (> 0)
// - ValidateNOrders: проверка количества ордеров (≥ 1)
// - ValidateEmail: проверка email формата
// - ValidateAPIKey: базовая проверка API ключа
//
// Возвращает error с описанием проблемы или nil
//
// TODO: реализовать валидаторы
