// Package authgate decide, por requisição, se ela segue para o handler ou é
// redirecionada para o login (ou para a home, quando um usuário já logado
// abre a página de login).
//
// O Gate é puro e sem estado: recebe o path e o sinal "autenticado" e devolve
// uma Decision. Quem resolve a sessão é um SessionResolver (ver subpacote
// session); qualquer falha na resolução conta como "não autenticado".
package authgate
