// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
//   - WindowStore: janela fixa em memória, mapa shardeado por xxhash (padrão)
//   - TokenBucketStore: token bucket por chave usando golang.org/x/time/rate
//   - RedisWindowStore: janela fixa compartilhada entre instâncias (script Lua)
//   - MemoryStatsStore / RedisStatsStore: contadores de decisões
//   - ChanPool: semáforo simples para limite de concorrência
package infra
