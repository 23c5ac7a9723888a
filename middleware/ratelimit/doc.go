// Package ratelimit fornece adapters HTTP (net/http) para rate limit e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny, acquire/timeout) sem net/http
//   - infra: implementações concretas (janela fixa, token bucket, Redis, semáforo)
//   - ratelimit (este pacote): middlewares HTTP + extração de chave + tradução para status/headers
//
// Fluxo numa rota cara (ex.: chamada ao modelo):
//
//  1. Extrai a chave do cliente (header/XFF/IP, ou o usuário autenticado)
//  2. Chama a camada application para obter a decisão
//  3. Se bloqueado, responde 429 com Retry-After e corpo JSON
//     {"error":"Too many requests","retryAfter":N}
//  4. Se permitido, chama o próximo handler sem alterar a requisição
//
// Cada instância de Middleware tem seu próprio store; classes de rota diferentes
// usam instâncias diferentes com Rule diferente.
package ratelimit
